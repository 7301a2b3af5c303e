// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Meetup metrics
	IncMeetupCreated()
	IncMeetupUpdated()
	IncMeetupDeleted()

	// Subscription metrics
	IncSubscriptionCreated()

	// IncSchedulingRejected counts business-rule rejections by reason code.
	IncSchedulingRejected(reason string)

	// Notification pipeline metrics
	IncNotificationEnqueued(status string)  // status: "accepted" or "dropped"
	IncNotificationPublished(status string) // status: "success" or "failed"
	IncNotificationProcessed(status string) // status: "delivered", "failed", "exhausted", "skipped", "dead_lettered"
	SetNotificationQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
