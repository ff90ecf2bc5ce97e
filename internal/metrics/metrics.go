// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the sync pipeline.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Sync client metrics
	IncSyncBatch(status string) // status: "success" or "failed"
	AddCommentsSynced(count int)
	ObserveSyncDuration(duration time.Duration)
	IncSyncRetry()

	// Poll loop metrics
	IncPoll(status string) // status: "synced", "idle" or "failed"
	SetCursorLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
