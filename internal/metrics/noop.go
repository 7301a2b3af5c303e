package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncMeetupCreated is a no-op.
func (n *NoopRecorder) IncMeetupCreated() {}

// IncMeetupUpdated is a no-op.
func (n *NoopRecorder) IncMeetupUpdated() {}

// IncMeetupDeleted is a no-op.
func (n *NoopRecorder) IncMeetupDeleted() {}

// IncSubscriptionCreated is a no-op.
func (n *NoopRecorder) IncSubscriptionCreated() {}

// IncSchedulingRejected is a no-op.
func (n *NoopRecorder) IncSchedulingRejected(reason string) {}

// IncNotificationEnqueued is a no-op.
func (n *NoopRecorder) IncNotificationEnqueued(status string) {}

// IncNotificationPublished is a no-op.
func (n *NoopRecorder) IncNotificationPublished(status string) {}

// IncNotificationProcessed is a no-op.
func (n *NoopRecorder) IncNotificationProcessed(status string) {}

// SetNotificationQueueDepth is a no-op.
func (n *NoopRecorder) SetNotificationQueueDepth(depth int64) {}
