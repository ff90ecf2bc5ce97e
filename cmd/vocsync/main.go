// Package main is the entrypoint for the vocsync integration.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vocsync/vocsync/internal/checkpoint"
	"github.com/vocsync/vocsync/internal/config"
	"github.com/vocsync/vocsync/internal/integration"
	"github.com/vocsync/vocsync/internal/metrics"
	"github.com/vocsync/vocsync/internal/ops"
	"github.com/vocsync/vocsync/internal/reinfer"
	"github.com/vocsync/vocsync/internal/source"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewInMemory()

	// Build the API client
	clientOpts := []reinfer.Option{
		reinfer.WithBaseURL(cfg.APIBaseURL),
		reinfer.WithLogger(logger),
		reinfer.WithMetrics(recorder),
	}
	if cfg.SourceName != "" {
		clientOpts = append(clientOpts, reinfer.WithSource(cfg.SourceName))
	}
	if cfg.RetryDisabled {
		clientOpts = append(clientOpts, reinfer.WithRetryPolicy(reinfer.NoRetry))
	}
	client := reinfer.New(cfg.AuthToken, clientOpts...)

	// Build the data source
	checks := make(map[string]ops.HealthChecker)
	var src source.Source
	switch cfg.SourceKind {
	case config.SourcePostgres:
		pg, err := source.NewPostgres(ctx, cfg.DatabaseURL, cfg.PageSize)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		defer pg.Close()
		logger.Info("connected to database")
		src = pg
		checks["postgres"] = pg
	default:
		fake := source.NewFake()
		fake.SetPageSize(cfg.PageSize)
		src = fake
		logger.Info("using fake data source")
	}

	integ := integration.New(integration.Config{
		Owner:                  cfg.DatasetOwner,
		Dataset:                cfg.DatasetName,
		PollInterval:           cfg.PollInterval,
		Lookback:               cfg.Lookback,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	}, client, src, logger, recorder)

	// Optional Redis checkpoint store
	if cfg.RedisURL != "" {
		store, err := checkpoint.NewRedis(ctx, cfg.RedisURL, cfg.DatasetOwner, cfg.DatasetName, cfg.SourceName)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("connected to Redis checkpoint store")
		integ.SetCheckpoint(store)
		checks["redis"] = store
	}

	// Ops sidecar
	if cfg.OpsEnabled {
		opsServer := ops.NewServer(cfg.OpsPort, checks, recorder, logger)
		go func() {
			if err := opsServer.Run(ctx); err != nil {
				logger.Error("ops server error", "error", err)
			}
		}()
	}

	logger.Info("starting integration",
		"dataset", cfg.DatasetOwner+"/"+cfg.DatasetName,
		"source", cfg.SourceKind,
		"api_url", cfg.APIBaseURL,
	)

	err = integ.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("integration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("integration exited cleanly")
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactURL strips credentials from a connection URL for logging.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError removes secrets from an error message before logging.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return msg
}
