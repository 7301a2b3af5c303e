// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/meetapp/meetapp/internal/metrics"
	"github.com/meetapp/meetapp/internal/model"
	"github.com/meetapp/meetapp/internal/repository"
	"github.com/meetapp/meetapp/internal/scheduling"
)

// Service errors.
var (
	ErrValidation     = errors.New("validation failed")
	ErrMeetupNotFound = errors.New("meetup not found")
	ErrForbidden      = errors.New("only the organizer can change this meetup")

	ErrLeadTime          = scheduling.ErrLeadTime
	ErrDoubleBooked      = scheduling.ErrDoubleBooked
	ErrSelfSubscribe     = scheduling.ErrSelfSubscribe
	ErrPastMeetup        = scheduling.ErrPastMeetup
	ErrAlreadySubscribed = scheduling.ErrAlreadySubscribed
	ErrTimeConflict      = scheduling.ErrTimeConflict
)

// MeetupStore persists meetups.
type MeetupStore interface {
	scheduling.MeetupSlots
	CreateMeetup(ctx context.Context, meetup *model.Meetup) error
	GetMeetupByID(ctx context.Context, id string) (*model.Meetup, error)
	UpdateMeetup(ctx context.Context, meetup *model.Meetup) error
	DeleteMeetup(ctx context.Context, id string) error
	ListMeetups(ctx context.Context, filter repository.MeetupFilter, limit, offset int) ([]*model.MeetupDetails, error)
	ListMeetupsByOwner(ctx context.Context, ownerID string) ([]*model.Meetup, error)
}

// SubscriptionStore persists subscriptions.
type SubscriptionStore interface {
	scheduling.SubscriptionSlots
	CreateSubscription(ctx context.Context, sub *model.Subscription) error
	ListUpcomingSubscriptions(ctx context.Context, userID string, after time.Time) ([]*model.SubscriptionDetails, error)
}

// Dispatcher hands notification jobs to the background pipeline.
type Dispatcher interface {
	Enqueue(ctx context.Context, job model.NotificationJob) error
}

// Options carries the ambient dependencies shared by the services.
type Options struct {
	// Location is the time zone for dates given without an offset and for
	// day filters. Defaults to UTC.
	Location *time.Location
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewNoop()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

var validate = validator.New()

// validationError flattens validator errors into one ErrValidation.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Join(ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return &fieldError{fields: fields}
}

type fieldError struct {
	fields []string
}

func (e *fieldError) Error() string {
	return "validation failed: " + strings.Join(e.fields, ", ") + " required"
}

func (e *fieldError) Unwrap() error {
	return ErrValidation
}

// rejection converts a negative verdict into its error and counts it.
func rejection(recorder metrics.Recorder, verdict scheduling.Verdict) error {
	recorder.IncSchedulingRejected(string(verdict.Reason))
	return verdict.Err()
}
