// Package integration implements the polling loop that moves verbatims from a
// data source into a remote dataset.
package integration

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vocsync/vocsync/internal/checkpoint"
	"github.com/vocsync/vocsync/internal/metrics"
	"github.com/vocsync/vocsync/internal/model"
	"github.com/vocsync/vocsync/internal/reinfer"
	"github.com/vocsync/vocsync/internal/source"
)

const (
	// DefaultPollInterval is the pause between polls.
	DefaultPollInterval = 1 * time.Second
	// DefaultLookback is the window in which new comments may still appear
	// with out-of-order timestamps, so the cursor never advances into it.
	DefaultLookback = 10 * time.Second
	// DefaultMaxConsecutiveFailures aborts the run when polls keep failing.
	DefaultMaxConsecutiveFailures = 5
)

// ErrTooManyFailures is returned by Run after too many consecutive poll failures.
var ErrTooManyFailures = errors.New("too many consecutive poll failures")

// SyncClient is the part of the API client the integration needs.
type SyncClient interface {
	Sync(ctx context.Context, owner, dataset string, comments []model.Comment) error
	MostRecent(ctx context.Context, owner, dataset string) (string, time.Time, error)
}

// Config holds integration settings. Zero values fall back to defaults.
type Config struct {
	Owner                  string
	Dataset                string
	PollInterval           time.Duration
	Lookback               time.Duration
	MaxConsecutiveFailures int
}

// Integration polls a source and syncs new comments in batches.
type Integration struct {
	cfg     Config
	client  SyncClient
	src     source.Source
	store   checkpoint.Store
	logger  *slog.Logger
	metrics metrics.Recorder

	cursor    time.Time
	cursorSet bool
	pageIndex int

	now func() time.Time
}

// New creates an Integration. Pass a nil recorder to disable metrics.
func New(cfg Config, client SyncClient, src source.Source, logger *slog.Logger, recorder metrics.Recorder) *Integration {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Integration{
		cfg:     cfg,
		client:  client,
		src:     src,
		logger:  logger.With("component", "integration", "dataset", cfg.Owner+"/"+cfg.Dataset),
		metrics: recorder,
		now:     time.Now,
	}
}

// SetCheckpoint attaches a cursor store so runs resume where they left off.
func (i *Integration) SetCheckpoint(store checkpoint.Store) {
	i.store = store
}

// Run polls at a fixed interval until the context is cancelled or the
// consecutive-failure cap is reached.
func (i *Integration) Run(ctx context.Context) error {
	i.logger.Info("integration started", "poll_interval", i.cfg.PollInterval)

	ticker := time.NewTicker(i.cfg.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			i.logger.Info("integration stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := i.Poll(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				consecutiveFailures++
				i.metrics.IncPoll("failed")
				i.logger.Error("poll failed",
					"consecutive_failures", consecutiveFailures,
					"error", err,
				)
				if consecutiveFailures >= i.cfg.MaxConsecutiveFailures {
					return fmt.Errorf("%w: %d", ErrTooManyFailures, consecutiveFailures)
				}
				continue
			}
			consecutiveFailures = 0
		}
	}
}

// Poll performs one poll, syncing any new comments from the source.
func (i *Integration) Poll(ctx context.Context) error {
	if !i.cursorSet {
		if err := i.bootstrapCursor(ctx); err != nil {
			return fmt.Errorf("bootstrap cursor: %w", err)
		}
	}

	// Comments close to the current time may still arrive out of order, so
	// the source cutoff never advances past now minus the lookback window.
	limit := i.cursor
	if cutoff := i.now().Add(-i.cfg.Lookback); cutoff.Before(limit) {
		limit = cutoff
	}

	page, err := i.src.NewerThan(ctx, limit, i.pageIndex)
	if err != nil {
		return fmt.Errorf("fetch page %d: %w", i.pageIndex, err)
	}
	if len(page) == 0 {
		i.logger.Debug("no comments left to sync", "cutoff", limit)
		i.metrics.IncPoll("idle")
		return nil
	}

	comments := make([]model.Comment, 0, len(page))
	for _, raw := range page {
		comments = append(comments, rawToComment(raw))
	}

	batchID := ulid.Make().String()
	start := i.now()
	err = i.client.Sync(ctx, i.cfg.Owner, i.cfg.Dataset, comments)
	duration := time.Since(start)

	i.metrics.ObserveSyncDuration(duration)
	if err != nil {
		i.metrics.IncSyncBatch("failed")
		return fmt.Errorf("sync batch %s: %w", batchID, err)
	}
	i.metrics.IncSyncBatch("success")
	i.metrics.AddCommentsSynced(len(comments))

	last := comments[len(comments)-1].Timestamp
	if !last.Equal(i.cursor) {
		i.cursor = last
		i.pageIndex = 0
	} else {
		i.pageIndex++
	}
	i.saveCheckpoint(ctx)
	i.metrics.SetCursorLag(i.now().Sub(i.cursor))
	i.metrics.IncPoll("synced")

	i.logger.Info("comments synced",
		"batch_id", batchID,
		"comments", len(comments),
		"cursor", i.cursor,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// bootstrapCursor initializes the cursor from the checkpoint store if one is
// attached, otherwise from the dataset's most recent comment. An empty
// dataset starts from the epoch.
func (i *Integration) bootstrapCursor(ctx context.Context) error {
	if i.store != nil {
		cursor, ok, err := i.store.Load(ctx)
		if err != nil {
			i.logger.Warn("checkpoint load failed, falling back to most recent", "error", err)
		} else if ok {
			i.cursor = cursor
			i.cursorSet = true
			i.logger.Info("cursor restored from checkpoint", "cursor", cursor)
			return nil
		}
	}

	_, cursor, err := i.client.MostRecent(ctx, i.cfg.Owner, i.cfg.Dataset)
	if err != nil {
		if !errors.Is(err, reinfer.ErrEmptyDataset) {
			return err
		}
		cursor = time.Unix(0, 0).UTC()
	}

	i.cursor = cursor
	i.cursorSet = true
	i.logger.Info("cursor bootstrapped from dataset", "cursor", cursor)
	return nil
}

func (i *Integration) saveCheckpoint(ctx context.Context) {
	if i.store == nil {
		return
	}
	if err := i.store.Save(ctx, i.cursor); err != nil {
		i.logger.Warn("checkpoint save failed", "error", err)
	}
}

// rawToComment converts a source record to an API comment. The comment ID is
// the hex encoding of the source's own identifier, so re-uploading the same
// record is idempotent.
func rawToComment(raw source.RawVerbatim) model.Comment {
	return model.Comment{
		ID:        hex.EncodeToString([]byte(raw.ID)),
		Timestamp: raw.Timestamp,
		Text:      raw.Text,
		UserProperties: []model.UserProperty{
			model.NumberProperty{Name: "NPS", Value: float64(raw.NPS)},
			model.StringProperty{Name: "Username", Value: raw.Username},
		},
	}
}
