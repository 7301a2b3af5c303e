// Package calendar renders subscriptions as iCalendar documents.
package calendar

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/meetapp/meetapp/internal/model"
)

// ProductID identifies documents produced by this service.
const ProductID = "-//meetapp//subscriptions//EN"

// SlotLength is the event length written for a meetup. Meetups have a start
// only; one hour matches the per-owner hour slot.
const SlotLength = time.Hour

// Render returns an iCalendar document with one VEVENT per subscription.
// Event UIDs are stable per meetup so calendar clients update in place.
func Render(subs []*model.SubscriptionDetails, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	for _, sub := range subs {
		m := sub.Meetup
		event := cal.AddEvent(m.ID + "@meetapp")
		event.SetDtStampTime(stamp.UTC())
		event.SetCreatedTime(m.CreatedAt.UTC())
		event.SetModifiedAt(m.UpdatedAt.UTC())
		event.SetStartAt(m.Date.UTC())
		event.SetEndAt(m.Date.Add(SlotLength).UTC())
		event.SetSummary(m.Title)
		event.SetDescription(m.Description)
		event.SetLocation(m.Location)
		if sub.Organizer.Email != "" {
			event.SetOrganizer("mailto:"+sub.Organizer.Email, ical.WithCN(sub.Organizer.Name))
		}
	}

	return cal.Serialize()
}
