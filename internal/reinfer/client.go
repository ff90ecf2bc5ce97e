// Package reinfer provides the sync client for the re:infer VoC API.
package reinfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vocsync/vocsync/internal/metrics"
	"github.com/vocsync/vocsync/internal/model"
)

const (
	// DefaultBaseURL is the hosted API endpoint.
	DefaultBaseURL = "https://reinfer.io"

	// AuthTokenHeader carries the bearer credential.
	AuthTokenHeader = "X-Auth-Token"

	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 1 << 20
)

// NewHTTPClient creates an HTTP client configured for API calls.
// It has appropriate timeouts and does not follow redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Client performs authenticated requests against the sync API.
// All requests carry the token the client was constructed with.
type Client struct {
	baseURL    string
	token      string
	source     string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, e.g. for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithSource sets a source name, e.g. "Zendesk" or "Feefo". Every synced
// comment is tagged with it under the reserved "string:Source" property, and
// MostRecent filters on it.
func WithSource(source string) Option {
	return func(c *Client) { c.source = source }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) { c.retry = policy }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With("component", "reinfer.client") }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(c *Client) { c.metrics = recorder }
}

// New creates a Client authenticated with the given token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: NewHTTPClient(),
		retry:      DefaultRetry,
		logger:     slog.Default().With("component", "reinfer.client"),
		metrics:    metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sync uploads a batch of comments into owner/dataset with one POST request.
// The operation is idempotent: re-used comment IDs overwrite prior uploads.
// A 2xx response means the batch was accepted; any other status is surfaced
// as an *APIError. An empty batch is rejected locally with ErrNoComments.
func (c *Client) Sync(ctx context.Context, owner, dataset string, comments []model.Comment) error {
	if len(comments) == 0 {
		return ErrNoComments
	}

	payload, err := json.Marshal(model.SyncRequest{Comments: comments, Source: c.source})
	if err != nil {
		return fmt.Errorf("encode sync request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/voc/datasets/%s/%s/sync", c.baseURL, owner, dataset)
	if _, err := c.post(ctx, endpoint, payload); err != nil {
		return err
	}

	c.logger.Debug("batch synced",
		"owner", owner,
		"dataset", dataset,
		"comments", len(comments),
	)
	return nil
}

// MostRecent returns the id and timestamp of the comment with the highest
// timestamp in owner/dataset — not the most recently uploaded one. When the
// client carries a source name, only comments from that source are considered.
// An empty dataset is reported as ErrEmptyDataset.
func (c *Client) MostRecent(ctx context.Context, owner, dataset string) (string, time.Time, error) {
	request := recentRequest{Limit: 1}
	if c.source != "" {
		request.Filter = &recentFilter{
			UserProperties: map[string]propertyFilter{
				model.StringPropertyPrefix + "Source": {OneOf: []string{c.source}},
			},
		}
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode recent request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/voc/datasets/%s/%s/recent", c.baseURL, owner, dataset)
	body, err := c.post(ctx, endpoint, payload)
	if err != nil {
		return "", time.Time{}, err
	}

	var response struct {
		Comments []struct {
			ID        string `json:"id"`
			Timestamp string `json:"timestamp"`
		} `json:"comments"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", time.Time{}, fmt.Errorf("decode recent response: %w", err)
	}

	if len(response.Comments) == 0 {
		return "", time.Time{}, fmt.Errorf("%w: %s/%s", ErrEmptyDataset, owner, dataset)
	}

	ts, err := model.ParseTimestamp(response.Comments[0].Timestamp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parse recent timestamp: %w", err)
	}
	return response.Comments[0].ID, ts, nil
}

// recentRequest is the body of a most-recent query.
type recentRequest struct {
	Limit  int           `json:"limit"`
	Filter *recentFilter `json:"filter,omitempty"`
}

type recentFilter struct {
	UserProperties map[string]propertyFilter `json:"user_properties"`
}

type propertyFilter struct {
	OneOf []string `json:"one_of"`
}

// post issues the request, retrying per the client's retry policy.
func (c *Client) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.metrics.IncSyncRetry()
			delay := c.retry.Delay(attempt - 1)
			c.logger.Warn("request failed, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
		}

		body, err := c.postOnce(ctx, endpoint, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !c.retry.Retryable(apiErr.Status) {
			return nil, err
		}
	}
	return nil, lastErr
}

// postOnce performs a single POST and classifies the response.
func (c *Client) postOnce(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AuthTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, &APIError{Status: resp.StatusCode, Message: apiMessage(body)}
}

// sleepContext waits for the delay or until the context is done.
func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
