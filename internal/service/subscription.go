package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meetapp/meetapp/internal/calendar"
	"github.com/meetapp/meetapp/internal/clock"
	"github.com/meetapp/meetapp/internal/metrics"
	"github.com/meetapp/meetapp/internal/model"
	"github.com/meetapp/meetapp/internal/repository"
	"github.com/meetapp/meetapp/internal/scheduling"
	"github.com/oklog/ulid/v2"
)

// MeetupReader loads meetups by id.
type MeetupReader interface {
	GetMeetupByID(ctx context.Context, id string) (*model.Meetup, error)
}

// SubscriptionService handles subscription business logic.
type SubscriptionService struct {
	meetups       MeetupReader
	subscriptions SubscriptionStore
	policy        *scheduling.Policy
	dispatcher    Dispatcher
	clock         clock.Clock
	metrics       metrics.Recorder
	logger        *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
// A nil dispatcher disables notifications.
func NewSubscriptionService(
	meetups MeetupReader,
	subscriptions SubscriptionStore,
	policy *scheduling.Policy,
	dispatcher Dispatcher,
	clk clock.Clock,
	opts Options,
) *SubscriptionService {
	opts = opts.withDefaults()
	if clk == nil {
		clk = clock.System()
	}
	return &SubscriptionService{
		meetups:       meetups,
		subscriptions: subscriptions,
		policy:        policy,
		dispatcher:    dispatcher,
		clock:         clk,
		metrics:       opts.Metrics,
		logger:        opts.Logger.With("component", "subscription_service"),
	}
}

// SubscribeOutput is returned for an accepted subscription.
type SubscribeOutput struct {
	MeetupID string
	Date     time.Time
}

// Subscribe signs userID up for a meetup. The organizer is notified
// asynchronously once the subscription is stored.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, meetupID string) (*SubscribeOutput, error) {
	meetupID = strings.TrimSpace(meetupID)
	if meetupID == "" {
		return nil, fmt.Errorf("%w: meetup_id required", ErrValidation)
	}

	meetup, err := s.meetups.GetMeetupByID(ctx, meetupID)
	if err != nil {
		if errors.Is(err, repository.ErrMeetupNotFound) {
			return nil, ErrMeetupNotFound
		}
		return nil, fmt.Errorf("failed to load meetup: %w", err)
	}

	now := s.clock.Now()
	verdict, err := s.policy.CanSubscribe(ctx, userID, meetup, now)
	if err != nil {
		return nil, err
	}
	if !verdict.Accepted {
		return nil, rejection(s.metrics, verdict)
	}

	sub := &model.Subscription{
		ID:        ulid.Make().String(),
		UserID:    userID,
		MeetupID:  meetup.ID,
		CreatedAt: now.UTC(),
	}

	if err := s.subscriptions.CreateSubscription(ctx, sub); err != nil {
		return nil, s.translateWriteError(err)
	}

	s.metrics.IncSubscriptionCreated()
	s.logger.Info("subscription created", "subscription_id", sub.ID, "meetup_id", meetup.ID, "user_id", userID)

	s.notify(ctx, meetup.ID, userID, now)

	return &SubscribeOutput{MeetupID: meetup.ID, Date: meetup.Date}, nil
}

// ListMine returns userID's subscriptions to meetups that have not started,
// earliest first.
func (s *SubscriptionService) ListMine(ctx context.Context, userID string) ([]*model.SubscriptionDetails, error) {
	subs, err := s.subscriptions.ListUpcomingSubscriptions(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if subs == nil {
		subs = []*model.SubscriptionDetails{}
	}
	return subs, nil
}

// Calendar renders userID's upcoming subscriptions as an iCalendar document.
func (s *SubscriptionService) Calendar(ctx context.Context, userID string) (string, error) {
	subs, err := s.ListMine(ctx, userID)
	if err != nil {
		return "", err
	}
	return calendar.Render(subs, s.clock.Now()), nil
}

// notify enqueues the organizer mail. Failures are logged and never reach
// the caller; the subscription is already committed.
func (s *SubscriptionService) notify(ctx context.Context, meetupID, userID string, now time.Time) {
	if s.dispatcher == nil {
		return
	}

	job := model.NotificationJob{
		ID:         ulid.Make().String(),
		Kind:       model.JobSubscriptionMail,
		MeetupID:   meetupID,
		UserID:     userID,
		EnqueuedAt: now.UTC(),
	}

	if err := s.dispatcher.Enqueue(ctx, job); err != nil {
		s.logger.Warn("failed to enqueue subscription mail",
			"job_id", job.ID,
			"meetup_id", meetupID,
			"user_id", userID,
			"error", err,
		)
	}
}

func (s *SubscriptionService) translateWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrSubscriptionExists):
		s.metrics.IncSchedulingRejected(string(scheduling.ReasonAlreadySubscribed))
		return ErrAlreadySubscribed
	case errors.Is(err, repository.ErrSubscriptionTimeConflict):
		s.metrics.IncSchedulingRejected(string(scheduling.ReasonTimeConflict))
		return ErrTimeConflict
	case errors.Is(err, repository.ErrMeetupNotFound):
		return ErrMeetupNotFound
	case errors.Is(err, repository.ErrReferenceNotFound):
		return fmt.Errorf("%w: user does not exist", ErrValidation)
	default:
		return fmt.Errorf("failed to create subscription: %w", err)
	}
}
