package model

import "time"

// JobKind names a notification job type.
type JobKind string

const (
	// JobSubscriptionMail tells an organizer that someone subscribed to their meetup.
	JobSubscriptionMail JobKind = "subscription_mail"
)

// IsValid checks if the job kind is known.
func (k JobKind) IsValid() bool {
	return k == JobSubscriptionMail
}

// NotificationJob is the unit handed to the notification queue.
type NotificationJob struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	MeetupID   string    `json:"meetup_id"`
	UserID     string    `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DeliveryStatus represents the state of a notification delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusExhausted DeliveryStatus = "exhausted"
	DeliveryStatusSkipped   DeliveryStatus = "skipped"
)

// IsFinal reports whether no further attempts should be made.
func (s DeliveryStatus) IsFinal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusExhausted, DeliveryStatusSkipped:
		return true
	default:
		return false
	}
}

// NotificationDelivery tracks delivery attempts of one job.
// JobID is the idempotency key: redelivered jobs map to the same row.
type NotificationDelivery struct {
	JobID       string         `json:"job_id"`
	Kind        JobKind        `json:"kind"`
	MeetupID    string         `json:"meetup_id"`
	UserID      string         `json:"user_id"`
	Status      DeliveryStatus `json:"status"`
	Attempts    int            `json:"attempts"`
	LastError   *string        `json:"last_error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
}
