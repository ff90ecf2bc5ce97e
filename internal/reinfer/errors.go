package reinfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for sync operations.
var (
	// ErrNoComments is returned when Sync is called with an empty batch.
	// An empty sync is a caller bug, not a legitimate no-op.
	ErrNoComments = errors.New("no comments to sync")
	// ErrInvalidComments is returned when the API rejects the batch (HTTP 400).
	ErrInvalidComments = errors.New("invalid comments")
	// ErrNoSuchDataset is returned when the target dataset does not exist (HTTP 404).
	ErrNoSuchDataset = errors.New("dataset not found")
	// ErrRateLimited is returned when comments are uploaded too fast (HTTP 429).
	ErrRateLimited = errors.New("rate limited")
	// ErrEmptyDataset is returned by MostRecent when the dataset holds no comments.
	ErrEmptyDataset = errors.New("dataset is empty")
)

// APIError is returned when the API answers with a non-2xx status. It carries
// the status code and the response message so callers can inspect both.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api request failed: HTTP %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses to sentinel errors so callers can use
// errors.Is without giving up access to the status and message.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return ErrInvalidComments
	case http.StatusNotFound:
		return ErrNoSuchDataset
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// apiMessage extracts the "message" field from an error response body,
// falling back to the raw body.
func apiMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}

	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return "(no description available)"
	}
	return raw
}
