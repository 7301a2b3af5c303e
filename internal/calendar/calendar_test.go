package calendar

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/meetapp/meetapp/internal/model"
)

func TestRender(t *testing.T) {
	start := time.Date(2030, 6, 1, 18, 0, 0, 0, time.UTC)
	subs := []*model.SubscriptionDetails{
		{
			Subscription: model.Subscription{ID: "s1", UserID: "bea", MeetupID: "m1"},
			Meetup: model.Meetup{
				ID:          "m1",
				Title:       "Go Night",
				Description: "Talks and pizza",
				Location:    "Community Hall",
				Date:        start,
			},
			Organizer: model.UserSummary{ID: "ana", Name: "Ana", Email: "ana@example.com"},
		},
		{
			Subscription: model.Subscription{ID: "s2", UserID: "bea", MeetupID: "m2"},
			Meetup:       model.Meetup{ID: "m2", Title: "Rust Night", Date: start.Add(24 * time.Hour)},
		},
	}

	doc := Render(subs, start.Add(-time.Hour))

	if !strings.Contains(doc, "PRODID:"+ProductID) {
		t.Errorf("missing product id:\n%s", doc)
	}

	cal, err := ical.ParseCalendar(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("rendered document does not parse: %v", err)
	}

	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	first := events[0]
	if uid := first.GetProperty(ical.ComponentPropertyUniqueId); uid == nil || uid.Value != "m1@meetapp" {
		t.Errorf("unexpected UID: %+v", uid)
	}
	if summary := first.GetProperty(ical.ComponentPropertySummary); summary == nil || summary.Value != "Go Night" {
		t.Errorf("unexpected SUMMARY: %+v", summary)
	}
	if organizer := first.GetProperty(ical.ComponentPropertyOrganizer); organizer == nil || organizer.Value != "mailto:ana@example.com" {
		t.Errorf("unexpected ORGANIZER: %+v", organizer)
	}

	gotStart, err := first.GetStartAt()
	if err != nil {
		t.Fatalf("GetStartAt: %v", err)
	}
	if !gotStart.Equal(start) {
		t.Errorf("DTSTART = %v, want %v", gotStart, start)
	}
	gotEnd, err := first.GetEndAt()
	if err != nil {
		t.Fatalf("GetEndAt: %v", err)
	}
	if !gotEnd.Equal(start.Add(SlotLength)) {
		t.Errorf("DTEND = %v, want %v", gotEnd, start.Add(SlotLength))
	}

	if organizer := events[1].GetProperty(ical.ComponentPropertyOrganizer); organizer != nil {
		t.Errorf("event without organizer email should have no ORGANIZER, got %+v", organizer)
	}
}

func TestRender_Empty(t *testing.T) {
	doc := Render(nil, time.Now())
	if !strings.HasPrefix(doc, "BEGIN:VCALENDAR") {
		t.Errorf("expected a calendar document, got:\n%s", doc)
	}
	if strings.Contains(doc, "BEGIN:VEVENT") {
		t.Error("empty input should render no events")
	}
}
