package model

import (
	"testing"
	"time"
)

func TestMeetup_IsPast(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"before now", now.Add(-time.Second), true},
		{"exactly now", now, false},
		{"after now", now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Meetup{Date: tt.date}
			if got := m.IsPast(now); got != tt.want {
				t.Errorf("IsPast() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeetup_OwnedBy(t *testing.T) {
	m := &Meetup{OwnerID: "user-a"}
	if !m.OwnedBy("user-a") {
		t.Error("expected owner to match")
	}
	if m.OwnedBy("user-b") {
		t.Error("expected other user not to match")
	}
}

func TestMeetupDetails_IsSubscribed(t *testing.T) {
	d := &MeetupDetails{SubscriberIDs: []string{"u1", "u2"}}
	if !d.IsSubscribed("u2") {
		t.Error("expected u2 to be subscribed")
	}
	if d.IsSubscribed("u3") {
		t.Error("expected u3 not to be subscribed")
	}
}

func TestDeliveryStatus_IsFinal(t *testing.T) {
	final := []DeliveryStatus{DeliveryStatusDelivered, DeliveryStatusExhausted, DeliveryStatusSkipped}
	for _, s := range final {
		if !s.IsFinal() {
			t.Errorf("%s should be final", s)
		}
	}
	for _, s := range []DeliveryStatus{DeliveryStatusPending, DeliveryStatusFailed} {
		if s.IsFinal() {
			t.Errorf("%s should not be final", s)
		}
	}
}

func TestJobKind_IsValid(t *testing.T) {
	if !JobSubscriptionMail.IsValid() {
		t.Error("subscription_mail should be valid")
	}
	if JobKind("unknown").IsValid() {
		t.Error("unknown kind should be invalid")
	}
}
