package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/meetapp/meetapp/internal/clock"
	"github.com/meetapp/meetapp/internal/metrics"
	"github.com/meetapp/meetapp/internal/model"
	"github.com/meetapp/meetapp/internal/repository"
	"github.com/meetapp/meetapp/internal/scheduling"
	"github.com/oklog/ulid/v2"
)

// PageSize is the number of meetups per listing page.
const PageSize = 10

// MaxPage is the highest page whose offset fits in an int.
const MaxPage = math.MaxInt/PageSize + 1

// MeetupService handles meetup business logic.
type MeetupService struct {
	store   MeetupStore
	policy  *scheduling.Policy
	clock   clock.Clock
	loc     *time.Location
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewMeetupService creates a new MeetupService.
func NewMeetupService(store MeetupStore, policy *scheduling.Policy, clk clock.Clock, opts Options) *MeetupService {
	opts = opts.withDefaults()
	if clk == nil {
		clk = clock.System()
	}
	return &MeetupService{
		store:   store,
		policy:  policy,
		clock:   clk,
		loc:     opts.Location,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "meetup_service"),
	}
}

// MeetupInput defines the fields of a meetup create or update.
type MeetupInput struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	Location    string `validate:"required"`
	Date        string `validate:"required"`
	ImageID     string `validate:"required"`
}

func (in MeetupInput) normalized() MeetupInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Date = strings.TrimSpace(in.Date)
	in.ImageID = strings.TrimSpace(in.ImageID)
	return in
}

// parse validates the input and returns it with its date resolved in the
// service location.
func (s *MeetupService) parse(input MeetupInput) (MeetupInput, time.Time, error) {
	input = input.normalized()
	if err := validate.Struct(input); err != nil {
		return input, time.Time{}, validationError(err)
	}

	date, err := clock.Parse(input.Date, s.loc)
	if err != nil {
		return input, time.Time{}, fmt.Errorf("%w: date must be an ISO-8601 timestamp", ErrValidation)
	}

	return input, date.In(s.loc), nil
}

// Create schedules a new meetup organized by ownerID.
func (s *MeetupService) Create(ctx context.Context, ownerID string, input MeetupInput) (*model.Meetup, error) {
	input, date, err := s.parse(input)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	verdict, err := s.policy.CanPlaceMeetup(ctx, ownerID, date, now, "")
	if err != nil {
		return nil, err
	}
	if !verdict.Accepted {
		return nil, rejection(s.metrics, verdict)
	}

	meetup := &model.Meetup{
		ID:          ulid.Make().String(),
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		Date:        date,
		OwnerID:     ownerID,
		ImageID:     input.ImageID,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	if err := s.save(ctx, meetup, true); err != nil {
		return nil, err
	}

	s.metrics.IncMeetupCreated()
	s.logger.Info("meetup created", "meetup_id", meetup.ID, "owner_id", ownerID, "date", meetup.Date)

	return meetup, nil
}

// Update reschedules or edits a meetup. Only the organizer may update, and
// only while the meetup has not happened yet.
func (s *MeetupService) Update(ctx context.Context, meetupID, requesterID string, input MeetupInput) (*model.Meetup, error) {
	meetup, err := s.load(ctx, meetupID)
	if err != nil {
		return nil, err
	}

	if !meetup.OwnedBy(requesterID) {
		return nil, ErrForbidden
	}

	now := s.clock.Now()
	if meetup.IsPast(now) {
		s.metrics.IncSchedulingRejected(string(scheduling.ReasonPastMeetup))
		return nil, ErrPastMeetup
	}

	input, date, err := s.parse(input)
	if err != nil {
		return nil, err
	}

	verdict, err := s.policy.CanPlaceMeetup(ctx, meetup.OwnerID, date, now, meetup.ID)
	if err != nil {
		return nil, err
	}
	if !verdict.Accepted {
		return nil, rejection(s.metrics, verdict)
	}

	meetup.Title = input.Title
	meetup.Description = input.Description
	meetup.Location = input.Location
	meetup.Date = date
	meetup.ImageID = input.ImageID

	if err := s.save(ctx, meetup, false); err != nil {
		return nil, err
	}

	s.metrics.IncMeetupUpdated()
	s.logger.Info("meetup updated", "meetup_id", meetup.ID, "date", meetup.Date)

	return meetup, nil
}

// Delete cancels a meetup. Only the organizer may delete it.
func (s *MeetupService) Delete(ctx context.Context, meetupID, requesterID string) error {
	meetup, err := s.load(ctx, meetupID)
	if err != nil {
		return err
	}

	if !meetup.OwnedBy(requesterID) {
		return ErrForbidden
	}

	if err := s.store.DeleteMeetup(ctx, meetup.ID); err != nil {
		if errors.Is(err, repository.ErrMeetupNotFound) {
			return ErrMeetupNotFound
		}
		return fmt.Errorf("failed to delete meetup: %w", err)
	}

	s.metrics.IncMeetupDeleted()
	s.logger.Info("meetup deleted", "meetup_id", meetup.ID)

	return nil
}

// ListMeetupsInput defines input for listing meetups.
type ListMeetupsInput struct {
	// Date optionally restricts the listing to one calendar day.
	Date string
	// Page is 1-indexed; values below 1 mean the first page.
	Page int
}

// ListMeetupsOutput defines output for listing meetups.
type ListMeetupsOutput struct {
	Meetups []*model.MeetupDetails
	Page    int
}

// List returns a page of meetups with organizer and subscriber details.
func (s *MeetupService) List(ctx context.Context, input ListMeetupsInput) (*ListMeetupsOutput, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		return nil, fmt.Errorf("%w: page must be at most %d", ErrValidation, MaxPage)
	}

	var filter repository.MeetupFilter
	if date := strings.TrimSpace(input.Date); date != "" {
		day, err := clock.Parse(date, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
		}
		start, end := clock.DayBounds(day, s.loc)
		filter.From = &start
		filter.To = &end
	}

	meetups, err := s.store.ListMeetups(ctx, filter, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetups: %w", err)
	}

	return &ListMeetupsOutput{Meetups: meetups, Page: page}, nil
}

// ListOrganizing returns the meetups organized by ownerID.
func (s *MeetupService) ListOrganizing(ctx context.Context, ownerID string) ([]*model.Meetup, error) {
	meetups, err := s.store.ListMeetupsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizer meetups: %w", err)
	}
	if meetups == nil {
		meetups = []*model.Meetup{}
	}
	return meetups, nil
}

// save is the only write path for meetups. Dates are stored truncated to the
// start of their hour, in UTC.
func (s *MeetupService) save(ctx context.Context, meetup *model.Meetup, create bool) error {
	meetup.Date = clock.HourStart(meetup.Date.In(s.loc)).UTC()

	var err error
	if create {
		err = s.store.CreateMeetup(ctx, meetup)
	} else {
		err = s.store.UpdateMeetup(ctx, meetup)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrMeetupSlotTaken):
		s.metrics.IncSchedulingRejected(string(scheduling.ReasonDoubleBooked))
		return ErrDoubleBooked
	case errors.Is(err, repository.ErrSubscriptionTimeConflict):
		s.metrics.IncSchedulingRejected(string(scheduling.ReasonTimeConflict))
		return fmt.Errorf("%w: a subscriber already attends another meetup at that time", ErrTimeConflict)
	case errors.Is(err, repository.ErrReferenceNotFound):
		return fmt.Errorf("%w: image or organizer does not exist", ErrValidation)
	case errors.Is(err, repository.ErrMeetupNotFound):
		return ErrMeetupNotFound
	default:
		return fmt.Errorf("failed to save meetup: %w", err)
	}
}

func (s *MeetupService) load(ctx context.Context, id string) (*model.Meetup, error) {
	meetup, err := s.store.GetMeetupByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMeetupNotFound) {
			return nil, ErrMeetupNotFound
		}
		return nil, fmt.Errorf("failed to load meetup: %w", err)
	}
	return meetup, nil
}
