package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/meetapp/meetapp/internal/model"
)

// Mail is a single outgoing message.
type Mail struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer sends mail.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// SMTPConfig configures the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates an SMTP mailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return &SMTPMailer{dialer: d, from: cfg.From}
}

// Send dials the relay and delivers the message.
func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetAddressHeader("To", mail.To, mail.ToName)
	msg.SetHeader("Subject", mail.Subject)
	msg.SetBody("text/plain", mail.TextBody)
	if mail.HTMLBody != "" {
		msg.AddAlternative("text/html", mail.HTMLBody)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogMailer writes mail to the log instead of sending it.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer for environments without SMTP.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "notification.mailer")}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, mail Mail) error {
	m.logger.Info("mail not sent, SMTP disabled",
		"to", mail.To,
		"subject", mail.Subject,
	)
	return nil
}

// SubscriptionMail builds the message telling an organizer that subscriber
// signed up for meetup. Dates are shown in loc.
func SubscriptionMail(meetup *model.Meetup, organizer, subscriber *model.User, loc *time.Location) Mail {
	if loc == nil {
		loc = time.UTC
	}
	when := meetup.Date.In(loc).Format("Monday, 02 Jan 2006 at 15:04 MST")

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n", organizer.Name)
	fmt.Fprintf(&text, "%s <%s> subscribed to %q.\n\n", subscriber.Name, subscriber.Email, meetup.Title)
	fmt.Fprintf(&text, "When: %s\nWhere: %s\n", when, meetup.Location)

	body := fmt.Sprintf(
		`<p>Hi %s,</p><p><b>%s</b> &lt;%s&gt; subscribed to <b>%s</b>.</p><p>When: %s<br>Where: %s</p>`,
		html.EscapeString(organizer.Name),
		html.EscapeString(subscriber.Name),
		html.EscapeString(subscriber.Email),
		html.EscapeString(meetup.Title),
		html.EscapeString(when),
		html.EscapeString(meetup.Location),
	)

	return Mail{
		To:       organizer.Email,
		ToName:   organizer.Name,
		Subject:  "New subscription: " + meetup.Title,
		TextBody: text.String(),
		HTMLBody: body,
	}
}
