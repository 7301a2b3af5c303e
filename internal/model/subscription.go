package model

import "time"

// Subscription links a user to a meetup they will attend.
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MeetupID  string    `json:"meetup_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscriptionDetails is a subscription joined with its meetup and organizer.
type SubscriptionDetails struct {
	Subscription
	Meetup    Meetup      `json:"meetup"`
	Organizer UserSummary `json:"organizer"`
}
