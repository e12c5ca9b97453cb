package handler

import (
	"fmt"
	"net/http"

	"github.com/userstats/userstats/internal/metrics"
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
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "userstats_users_created_total %d\n", snap.UsersCreated)
	writeMetric(w, "userstats_users_updated_total %d\n", snap.UsersUpdated)
	writeMetric(w, "userstats_users_deleted_total %d\n", snap.UsersDeleted)

	writeMetric(w, "userstats_query_validation_failures_total{endpoint=\"list\"} %d\n", snap.ListValidationErrors)
	writeMetric(w, "userstats_query_validation_failures_total{endpoint=\"stats\"} %d\n", snap.StatsValidationErrors)

	writeMetric(w, "userstats_store_call_duration_seconds_count %d\n", snap.StoreCallCount)
	writeMetric(w, "userstats_store_call_duration_seconds_sum %.6f\n", float64(snap.StoreCallTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
