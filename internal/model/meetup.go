// Package model defines domain entities for the application.
package model

import "time"

// Meetup represents a scheduled gathering organized by a user.
// Date is always stored truncated to the start of its hour.
type Meetup struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`
	OwnerID     string    `json:"owner_id"`
	ImageID     string    `json:"image_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnedBy reports whether userID organizes the meetup.
func (m *Meetup) OwnedBy(userID string) bool {
	return m.OwnerID == userID
}

// IsPast reports whether the meetup started strictly before now.
func (m *Meetup) IsPast(now time.Time) bool {
	return m.Date.Before(now)
}

// MeetupDetails is a meetup joined with its organizer, image and subscribers.
type MeetupDetails struct {
	Meetup
	Owner         UserSummary `json:"owner"`
	Image         *File       `json:"image,omitempty"`
	SubscriberIDs []string    `json:"subscriber_ids"`
}

// IsSubscribed reports whether userID appears among the subscribers.
func (d *MeetupDetails) IsSubscribed(userID string) bool {
	for _, id := range d.SubscriberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
