package dto

import (
	"time"

	"github.com/meetapp/meetapp/internal/model"
	"github.com/meetapp/meetapp/internal/service"
)

// SubscribeRequest is the body of POST /subscriptions.
type SubscribeRequest struct {
	MeetupID string `json:"meetup_id"`
}

// SubscribeResponse confirms an accepted subscription.
type SubscribeResponse struct {
	MeetupID string    `json:"meetup_id"`
	Date     time.Time `json:"date"`
}

// SubscriptionResponse is one of the caller's upcoming subscriptions.
type SubscriptionResponse struct {
	ID        string            `json:"id"`
	Meetup    MeetupResponse    `json:"meetup"`
	Organizer model.UserSummary `json:"organizer"`
	CreatedAt time.Time         `json:"created_at"`
}

// SubscriptionListResponse wraps the caller's subscriptions.
type SubscriptionListResponse struct {
	Data []SubscriptionResponse `json:"data"`
}

// ToSubscribeResponse converts the service result.
func ToSubscribeResponse(out *service.SubscribeOutput) SubscribeResponse {
	return SubscribeResponse{MeetupID: out.MeetupID, Date: out.Date}
}

// ToSubscriptionListResponse converts joined subscriptions.
func ToSubscriptionListResponse(subs []*model.SubscriptionDetails, now time.Time) SubscriptionListResponse {
	data := make([]SubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		data = append(data, SubscriptionResponse{
			ID:        s.ID,
			Meetup:    ToMeetupResponse(&s.Meetup, now),
			Organizer: s.Organizer,
			CreatedAt: s.CreatedAt,
		})
	}
	return SubscriptionListResponse{Data: data}
}
