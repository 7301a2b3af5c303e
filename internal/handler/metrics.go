package handler

import (
	"fmt"
	"net/http"

	"github.com/meetapp/meetapp/internal/metrics"
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

	writeMetric(w, "meetapp_meetups_created_total %d\n", snap.MeetupsCreated)
	writeMetric(w, "meetapp_meetups_updated_total %d\n", snap.MeetupsUpdated)
	writeMetric(w, "meetapp_meetups_deleted_total %d\n", snap.MeetupsDeleted)
	writeMetric(w, "meetapp_subscriptions_created_total %d\n", snap.SubscriptionsCreated)

	writeLabelled(w, "meetapp_scheduling_rejected_total", "reason", snap.SchedulingRejected)
	writeLabelled(w, "meetapp_notifications_enqueued_total", "status", snap.NotificationsEnqueued)
	writeLabelled(w, "meetapp_notifications_published_total", "status", snap.NotificationsPublished)
	writeLabelled(w, "meetapp_notifications_processed_total", "status", snap.NotificationsProcessed)

	writeMetric(w, "meetapp_notification_queue_depth %d\n", snap.NotificationQueueDepth)
}

func writeLabelled(w http.ResponseWriter, name, label string, counters map[string]uint64) {
	for _, value := range metrics.SortedLabels(counters) {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, value, counters[value])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
