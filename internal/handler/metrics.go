package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/tallyvox/tallyvox/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
//
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeLabelled(w, "tallyvox_auth_resolved_total", "source", snap.AuthResolved)
	writeLabelled(w, "tallyvox_auth_failed_total", "reason", snap.AuthFailed)
	writeMetric(w, "tallyvox_profile_cache_hits_total %d\n", snap.ProfileCacheHits)
	writeMetric(w, "tallyvox_profile_cache_misses_total %d\n", snap.ProfileCacheMisses)

	writeMetric(w, "tallyvox_vouchers_issued_total %d\n", snap.VouchersIssued)
	writeLabelled(w, "tallyvox_vouchers_rejected_total", "reason", snap.VouchersRejected)
	writeMetric(w, "tallyvox_voucher_code_collisions_total %d\n", snap.CodeCollisions)
	writeMetric(w, "tallyvox_voucher_races_lost_total %d\n", snap.RacesLost)
	writeMetric(w, "tallyvox_voucher_issue_duration_seconds_count %d\n", snap.IssueDurationCount)
	writeMetric(w, "tallyvox_voucher_issue_duration_seconds_sum %.6f\n", float64(snap.IssueDurationTotalNs)/1e9)

	writeLabelled(w, "tallyvox_notifications_total", "status", snap.Notifications)
	writeLabelled(w, "tallyvox_events_published_total", "status", snap.EventsPublished)
}

// writeLabelled writes one sample per label value, sorted for stable output.
func writeLabelled(w http.ResponseWriter, name, label string, counters map[string]uint64) {
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, counters[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
