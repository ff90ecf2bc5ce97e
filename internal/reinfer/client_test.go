package reinfer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vocsync/vocsync/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient wires a Client against a local test server with retries off.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := []Option{
		WithBaseURL(srv.URL),
		WithRetryPolicy(NoRetry),
		WithLogger(testLogger()),
	}
	return New("secret123", append(base, opts...)...)
}

func specComment() model.Comment {
	return model.Comment{
		ID:        "0123456789abcdef",
		Timestamp: time.Date(2011, 12, 11, 1, 2, 3, 0, time.UTC),
		Text:      "company is awesome!",
	}
}

func TestSync_RequestContract(t *testing.T) {
	var (
		gotMethod      string
		gotPath        string
		gotToken       string
		gotContentType string
		gotBody        []byte
	)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotToken = r.Header.Get(AuthTokenHeader)
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	err := client.Sync(context.Background(), "acme", "support", []model.Comment{specComment()})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if want := "/api/voc/datasets/acme/support/sync"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotToken != "secret123" {
		t.Errorf("%s = %q, want secret123", AuthTokenHeader, gotToken)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}

	wantBody := `{"comments":[{"original_text":"company is awesome!","timestamp":"2011-12-11T01:02:03.000000+00:00","id":"0123456789abcdef"}]}`
	if string(gotBody) != wantBody {
		t.Errorf("body mismatch\ngot:  %s\nwant: %s", gotBody, wantBody)
	}
}

func TestSync_AcceptsAny2xx(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	if err := client.Sync(context.Background(), "acme", "support", []model.Comment{specComment()}); err != nil {
		t.Errorf("Sync with 202: %v", err)
	}
}

func TestSync_EmptyBatch(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	})

	err := client.Sync(context.Background(), "acme", "support", nil)
	if !errors.Is(err, ErrNoComments) {
		t.Errorf("expected ErrNoComments, got %v", err)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("empty batch made %d requests, want 0", n)
	}
}

func TestSync_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid auth token"}`))
	})

	err := client.Sync(context.Background(), "acme", "support", []model.Comment{specComment()})
	if err == nil {
		t.Fatal("expected error for 401")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", apiErr.Status)
	}
	if apiErr.Message != "invalid auth token" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "invalid auth token")
	}
}

func TestSync_ErrorSentinels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"bad_request", http.StatusBadRequest, ErrInvalidComments},
		{"not_found", http.StatusNotFound, ErrNoSuchDataset},
		{"rate_limited", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			err := client.Sync(context.Background(), "acme", "support", []model.Comment{specComment()})
			if !errors.Is(err, tt.want) {
				t.Errorf("status %d: expected %v in chain, got %v", tt.status, tt.want, err)
			}
		})
	}
}

func TestSync_RetriesTransientFailures(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}, WithRetryPolicy(RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}))

	if err := client.Sync(context.Background(), "acme", "support", []model.Comment{specComment()}); err != nil {
		t.Fatalf("Sync after transient failures: %v", err)
	}
	if n := requests.Load(); n != 3 {
		t.Errorf("made %d requests, want 3", n)
	}
}

func TestSync_NoRetryOnClientError(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	err := client.Sync(context.Background(), "acme", "support", []model.Comment{specComment()})
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("made %d requests, want 1", n)
	}
}

func TestSync_GivesUpAfterMaxAttempts(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	err := client.Sync(context.Background(), "acme", "support", []model.Comment{specComment()})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Errorf("expected 502 APIError after retries, got %v", err)
	}
	if n := requests.Load(); n != 3 {
		t.Errorf("made %d requests, want 3", n)
	}
}

func TestSync_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := New("secret123",
		WithBaseURL(srv.URL),
		WithRetryPolicy(NoRetry),
		WithLogger(testLogger()),
	)
	if err := client.Sync(context.Background(), "acme", "support", []model.Comment{specComment()}); err == nil {
		t.Error("expected transport error")
	}
}

func TestSync_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithRetryPolicy(RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := client.Sync(ctx, "acme", "support", []model.Comment{specComment()})
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cancelled sync took %v, should not wait out backoff", elapsed)
	}
}

func TestMostRecent(t *testing.T) {
	var gotPath string
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"comments":[{"id":"6665656462616364","timestamp":"2017-01-02T13:45:21.000000+00:00"}]}`))
	})

	id, ts, err := client.MostRecent(context.Background(), "acme", "support")
	if err != nil {
		t.Fatalf("MostRecent: %v", err)
	}

	if want := "/api/voc/datasets/acme/support/recent"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if want := `{"limit":1}`; string(gotBody) != want {
		t.Errorf("body = %s, want %s", gotBody, want)
	}
	if id != "6665656462616364" {
		t.Errorf("id = %q", id)
	}
	if want := time.Date(2017, 1, 2, 13, 45, 21, 0, time.UTC); !ts.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ts, want)
	}
}

func TestMostRecent_SourceFilter(t *testing.T) {
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"comments":[{"id":"ab","timestamp":"2017-01-02T13:45:21.000000+00:00"}]}`))
	}, WithSource("Zendesk"))

	if _, _, err := client.MostRecent(context.Background(), "acme", "support"); err != nil {
		t.Fatalf("MostRecent: %v", err)
	}

	want := `{"limit":1,"filter":{"user_properties":{"string:Source":{"one_of":["Zendesk"]}}}}`
	if string(gotBody) != want {
		t.Errorf("body mismatch\ngot:  %s\nwant: %s", gotBody, want)
	}
}

func TestMostRecent_EmptyDataset(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"comments":[]}`))
	})

	_, _, err := client.MostRecent(context.Background(), "acme", "support")
	if !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestMostRecent_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	if _, _, err := client.MostRecent(context.Background(), "acme", "support"); err == nil {
		t.Error("expected decode error")
	}
}
