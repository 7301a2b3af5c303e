package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	MeetupsCreated         uint64
	MeetupsUpdated         uint64
	MeetupsDeleted         uint64
	SubscriptionsCreated   uint64
	SchedulingRejected     map[string]uint64
	NotificationsEnqueued  map[string]uint64
	NotificationsPublished map[string]uint64
	NotificationsProcessed map[string]uint64
	NotificationQueueDepth int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	meetupsCreated         uint64
	meetupsUpdated         uint64
	meetupsDeleted         uint64
	subscriptionsCreated   uint64
	notificationQueueDepth int64

	mu       sync.Mutex
	labelled map[string]map[string]uint64
}

const (
	seriesRejected  = "rejected"
	seriesEnqueued  = "enqueued"
	seriesPublished = "published"
	seriesProcessed = "processed"
)

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{labelled: make(map[string]map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		MeetupsCreated:         atomic.LoadUint64(&m.meetupsCreated),
		MeetupsUpdated:         atomic.LoadUint64(&m.meetupsUpdated),
		MeetupsDeleted:         atomic.LoadUint64(&m.meetupsDeleted),
		SubscriptionsCreated:   atomic.LoadUint64(&m.subscriptionsCreated),
		SchedulingRejected:     m.copyLocked(seriesRejected),
		NotificationsEnqueued:  m.copyLocked(seriesEnqueued),
		NotificationsPublished: m.copyLocked(seriesPublished),
		NotificationsProcessed: m.copyLocked(seriesProcessed),
		NotificationQueueDepth: atomic.LoadInt64(&m.notificationQueueDepth),
	}
}

// IncMeetupCreated increments meetup created counter.
func (m *InMemoryRecorder) IncMeetupCreated() {
	atomic.AddUint64(&m.meetupsCreated, 1)
}

// IncMeetupUpdated increments meetup updated counter.
func (m *InMemoryRecorder) IncMeetupUpdated() {
	atomic.AddUint64(&m.meetupsUpdated, 1)
}

// IncMeetupDeleted increments meetup deleted counter.
func (m *InMemoryRecorder) IncMeetupDeleted() {
	atomic.AddUint64(&m.meetupsDeleted, 1)
}

// IncSubscriptionCreated increments subscription created counter.
func (m *InMemoryRecorder) IncSubscriptionCreated() {
	atomic.AddUint64(&m.subscriptionsCreated, 1)
}

// IncSchedulingRejected increments the rejection counter for reason.
func (m *InMemoryRecorder) IncSchedulingRejected(reason string) {
	m.inc(seriesRejected, reason)
}

// IncNotificationEnqueued increments the enqueue counter for status.
func (m *InMemoryRecorder) IncNotificationEnqueued(status string) {
	m.inc(seriesEnqueued, status)
}

// IncNotificationPublished increments the publish counter for status.
func (m *InMemoryRecorder) IncNotificationPublished(status string) {
	m.inc(seriesPublished, status)
}

// IncNotificationProcessed increments the worker counter for status.
func (m *InMemoryRecorder) IncNotificationProcessed(status string) {
	m.inc(seriesProcessed, status)
}

// SetNotificationQueueDepth records the dispatcher buffer depth.
func (m *InMemoryRecorder) SetNotificationQueueDepth(depth int64) {
	atomic.StoreInt64(&m.notificationQueueDepth, depth)
}

func (m *InMemoryRecorder) inc(series, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counters, ok := m.labelled[series]
	if !ok {
		counters = make(map[string]uint64)
		m.labelled[series] = counters
	}
	counters[label]++
}

func (m *InMemoryRecorder) copyLocked(series string) map[string]uint64 {
	out := make(map[string]uint64, len(m.labelled[series]))
	for k, v := range m.labelled[series] {
		out[k] = v
	}
	return out
}

// SortedLabels returns the keys of a labelled counter in stable order.
func SortedLabels(counters map[string]uint64) []string {
	labels := make([]string, 0, len(counters))
	for k := range counters {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}
