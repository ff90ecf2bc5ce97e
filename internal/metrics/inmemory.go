package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	SyncBatchesSuccess  uint64
	SyncBatchesFailed   uint64
	CommentsSynced      uint64
	SyncDurationCount   uint64
	SyncDurationTotalNs int64
	SyncRetries         uint64
	PollsSynced         uint64
	PollsIdle           uint64
	PollsFailed         uint64
	CursorLagNs         int64
}

// InMemoryRecorder stores metrics in memory for the ops endpoint and tests.
type InMemoryRecorder struct {
	syncBatchesSuccess  uint64
	syncBatchesFailed   uint64
	commentsSynced      uint64
	syncDurationCount   uint64
	syncDurationTotalNs int64
	syncRetries         uint64
	pollsSynced         uint64
	pollsIdle           uint64
	pollsFailed         uint64
	cursorLagNs         int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		SyncBatchesSuccess:  atomic.LoadUint64(&m.syncBatchesSuccess),
		SyncBatchesFailed:   atomic.LoadUint64(&m.syncBatchesFailed),
		CommentsSynced:      atomic.LoadUint64(&m.commentsSynced),
		SyncDurationCount:   atomic.LoadUint64(&m.syncDurationCount),
		SyncDurationTotalNs: atomic.LoadInt64(&m.syncDurationTotalNs),
		SyncRetries:         atomic.LoadUint64(&m.syncRetries),
		PollsSynced:         atomic.LoadUint64(&m.pollsSynced),
		PollsIdle:           atomic.LoadUint64(&m.pollsIdle),
		PollsFailed:         atomic.LoadUint64(&m.pollsFailed),
		CursorLagNs:         atomic.LoadInt64(&m.cursorLagNs),
	}
}

// IncSyncBatch increments the batch counter for the given status.
func (m *InMemoryRecorder) IncSyncBatch(status string) {
	if status == "success" {
		atomic.AddUint64(&m.syncBatchesSuccess, 1)
		return
	}
	atomic.AddUint64(&m.syncBatchesFailed, 1)
}

// AddCommentsSynced adds to the synced comment counter.
func (m *InMemoryRecorder) AddCommentsSynced(count int) {
	if count > 0 {
		atomic.AddUint64(&m.commentsSynced, uint64(count))
	}
}

// ObserveSyncDuration records a sync request duration.
func (m *InMemoryRecorder) ObserveSyncDuration(duration time.Duration) {
	atomic.AddUint64(&m.syncDurationCount, 1)
	atomic.AddInt64(&m.syncDurationTotalNs, duration.Nanoseconds())
}

// IncSyncRetry increments the retry counter.
func (m *InMemoryRecorder) IncSyncRetry() {
	atomic.AddUint64(&m.syncRetries, 1)
}

// IncPoll increments the poll counter for the given status.
func (m *InMemoryRecorder) IncPoll(status string) {
	switch status {
	case "synced":
		atomic.AddUint64(&m.pollsSynced, 1)
	case "idle":
		atomic.AddUint64(&m.pollsIdle, 1)
	default:
		atomic.AddUint64(&m.pollsFailed, 1)
	}
}

// SetCursorLag records how far the sync cursor trails the current time.
func (m *InMemoryRecorder) SetCursorLag(lag time.Duration) {
	atomic.StoreInt64(&m.cursorLagNs, lag.Nanoseconds())
}
