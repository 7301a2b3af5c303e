// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/meetapp/meetapp/internal/model"
)

// MeetupRequest is the body of POST /meetups and PUT /meetups/{id}.
// Date accepts RFC 3339 or a local "2006-01-02T15:04:05" timestamp.
type MeetupRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	ImageID     string `json:"image_id"`
}

// MeetupResponse represents a meetup in API responses.
type MeetupResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`
	OwnerID     string    `json:"owner_id"`
	ImageID     string    `json:"image_id"`
	Past        bool      `json:"past"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MeetupDetailsResponse is a listed meetup with its organizer and subscribers.
type MeetupDetailsResponse struct {
	MeetupResponse
	Owner           model.UserSummary `json:"owner"`
	Image           *model.File       `json:"image,omitempty"`
	SubscriberCount int               `json:"subscriber_count"`
	Subscribed      bool              `json:"subscribed"`
}

// MeetupListResponse is one page of meetups.
type MeetupListResponse struct {
	Data []MeetupDetailsResponse `json:"data"`
	Page int                     `json:"page"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToMeetupResponse converts a Meetup model to MeetupResponse DTO.
func ToMeetupResponse(m *model.Meetup, now time.Time) MeetupResponse {
	return MeetupResponse{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Location:    m.Location,
		Date:        m.Date,
		OwnerID:     m.OwnerID,
		ImageID:     m.ImageID,
		Past:        m.IsPast(now),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ToMeetupListResponse converts a page of meetups as seen by callerID.
func ToMeetupListResponse(meetups []*model.MeetupDetails, page int, callerID string, now time.Time) MeetupListResponse {
	data := make([]MeetupDetailsResponse, 0, len(meetups))
	for _, m := range meetups {
		data = append(data, MeetupDetailsResponse{
			MeetupResponse:  ToMeetupResponse(&m.Meetup, now),
			Owner:           m.Owner,
			Image:           m.Image,
			SubscriberCount: len(m.SubscriberIDs),
			Subscribed:      m.IsSubscribed(callerID),
		})
	}
	return MeetupListResponse{Data: data, Page: page}
}

// ToMeetupResponses converts a list of meetups.
func ToMeetupResponses(meetups []*model.Meetup, now time.Time) []MeetupResponse {
	out := make([]MeetupResponse, 0, len(meetups))
	for _, m := range meetups {
		out = append(out, ToMeetupResponse(m, now))
	}
	return out
}
