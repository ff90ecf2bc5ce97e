package ops

import (
	"fmt"
	"net/http"
)

// handleMetrics returns metrics in Prometheus exposition format.
//
// GET /metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := s.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "vocsync_sync_batches_total{status=\"success\"} %d\n", snap.SyncBatchesSuccess)
	writeMetric(w, "vocsync_sync_batches_total{status=\"failed\"} %d\n", snap.SyncBatchesFailed)
	writeMetric(w, "vocsync_comments_synced_total %d\n", snap.CommentsSynced)
	writeMetric(w, "vocsync_sync_duration_seconds_count %d\n", snap.SyncDurationCount)
	writeMetric(w, "vocsync_sync_duration_seconds_sum %.6f\n", float64(snap.SyncDurationTotalNs)/1e9)
	writeMetric(w, "vocsync_sync_retries_total %d\n", snap.SyncRetries)

	writeMetric(w, "vocsync_polls_total{status=\"synced\"} %d\n", snap.PollsSynced)
	writeMetric(w, "vocsync_polls_total{status=\"idle\"} %d\n", snap.PollsIdle)
	writeMetric(w, "vocsync_polls_total{status=\"failed\"} %d\n", snap.PollsFailed)
	writeMetric(w, "vocsync_cursor_lag_seconds %.6f\n", float64(snap.CursorLagNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
