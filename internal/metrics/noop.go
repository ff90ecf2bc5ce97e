package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncSyncBatch is a no-op.
func (n *NoopRecorder) IncSyncBatch(status string) {}

// AddCommentsSynced is a no-op.
func (n *NoopRecorder) AddCommentsSynced(count int) {}

// ObserveSyncDuration is a no-op.
func (n *NoopRecorder) ObserveSyncDuration(duration time.Duration) {}

// IncSyncRetry is a no-op.
func (n *NoopRecorder) IncSyncRetry() {}

// IncPoll is a no-op.
func (n *NoopRecorder) IncPoll(status string) {}

// SetCursorLag is a no-op.
func (n *NoopRecorder) SetCursorLag(lag time.Duration) {}
