package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/meetapp/meetapp/internal/model"
)

func TestSubscriptionMail(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("BRT", -3*60*60)
	meetup := &model.Meetup{
		Title:    "Go <Night>",
		Location: "Community Hall",
		Date:     time.Date(2024, 6, 2, 21, 0, 0, 0, time.UTC),
	}
	organizer := &model.User{Name: "Ana", Email: "ana@example.com"}
	subscriber := &model.User{Name: "Bea", Email: "bea@example.com"}

	mail := SubscriptionMail(meetup, organizer, subscriber, loc)

	if mail.To != "ana@example.com" || mail.ToName != "Ana" {
		t.Errorf("recipient = %q <%s>", mail.ToName, mail.To)
	}
	if mail.Subject != "New subscription: Go <Night>" {
		t.Errorf("Subject = %q", mail.Subject)
	}
	if !strings.Contains(mail.TextBody, "18:00 BRT") {
		t.Errorf("date not shown in location: %q", mail.TextBody)
	}
	if !strings.Contains(mail.HTMLBody, "Go &lt;Night&gt;") {
		t.Errorf("html body not escaped: %q", mail.HTMLBody)
	}
}

func TestLogMailer(t *testing.T) {
	t.Parallel()

	m := NewLogMailer(discardLogger())
	if err := m.Send(context.Background(), Mail{To: "ana@example.com", Subject: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSMTPMailer_HonorsCancelledContext(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(SMTPConfig{Host: "smtp.invalid", Port: 587, From: "noreply@meetapp.local"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Send(ctx, Mail{To: "ana@example.com"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
