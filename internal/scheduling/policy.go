// Package scheduling decides whether meetups may be placed and whether users
// may subscribe to them.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meetapp/meetapp/internal/clock"
	"github.com/meetapp/meetapp/internal/model"
)

// LeadTime is the minimum gap between now and a meetup's start.
const LeadTime = 2 * time.Hour

// Reason identifies why a request was rejected.
type Reason string

const (
	ReasonLeadTime          Reason = "LEAD_TIME"
	ReasonDoubleBooked      Reason = "DOUBLE_BOOKED"
	ReasonSelfSubscribe     Reason = "SELF_SUBSCRIBE"
	ReasonPastMeetup        Reason = "PAST_MEETUP"
	ReasonAlreadySubscribed Reason = "ALREADY_SUBSCRIBED"
	ReasonTimeConflict      Reason = "TIME_CONFLICT"
)

// Rejection errors, one per Reason.
var (
	ErrLeadTime          = errors.New("meetups must be scheduled at least 2 hours ahead")
	ErrDoubleBooked      = errors.New("organizer already has a meetup at this hour")
	ErrSelfSubscribe     = errors.New("cannot subscribe to your own meetup")
	ErrPastMeetup        = errors.New("meetup already happened")
	ErrAlreadySubscribed = errors.New("already subscribed to this meetup")
	ErrTimeConflict      = errors.New("already subscribed to another meetup at the same time")
)

var reasonErrors = map[Reason]error{
	ReasonLeadTime:          ErrLeadTime,
	ReasonDoubleBooked:      ErrDoubleBooked,
	ReasonSelfSubscribe:     ErrSelfSubscribe,
	ReasonPastMeetup:        ErrPastMeetup,
	ReasonAlreadySubscribed: ErrAlreadySubscribed,
	ReasonTimeConflict:      ErrTimeConflict,
}

// Err returns the rejection error for the reason.
func (r Reason) Err() error {
	if err, ok := reasonErrors[r]; ok {
		return err
	}
	return fmt.Errorf("rejected: %s", string(r))
}

// Verdict is the outcome of a policy check.
type Verdict struct {
	Accepted bool
	Reason   Reason
}

// Err returns nil for accepted verdicts and the reason's error otherwise.
func (v Verdict) Err() error {
	if v.Accepted {
		return nil
	}
	return v.Reason.Err()
}

func accept() Verdict {
	return Verdict{Accepted: true}
}

func reject(reason Reason) Verdict {
	return Verdict{Reason: reason}
}

// MeetupSlots answers placement queries about stored meetups.
type MeetupSlots interface {
	// OwnerHasMeetupAt reports whether ownerID has a meetup stored at exactly
	// date, ignoring excludeID.
	OwnerHasMeetupAt(ctx context.Context, ownerID string, date time.Time, excludeID string) (bool, error)
}

// SubscriptionSlots answers eligibility queries about stored subscriptions.
type SubscriptionSlots interface {
	SubscriptionExists(ctx context.Context, userID, meetupID string) (bool, error)
	// HasSubscriptionAt reports whether userID is subscribed to a meetup other
	// than excludeMeetupID whose date equals date.
	HasSubscriptionAt(ctx context.Context, userID string, date time.Time, excludeMeetupID string) (bool, error)
}

// Policy evaluates scheduling rules against the stores.
type Policy struct {
	meetups       MeetupSlots
	subscriptions SubscriptionSlots
}

// NewPolicy creates a new Policy.
func NewPolicy(meetups MeetupSlots, subscriptions SubscriptionSlots) *Policy {
	return &Policy{
		meetups:       meetups,
		subscriptions: subscriptions,
	}
}

// CanPlaceMeetup checks the lead-time and per-owner hour exclusivity rules.
// Pass the meetup's own id as excludeID when rescheduling it.
func (p *Policy) CanPlaceMeetup(ctx context.Context, ownerID string, proposed, now time.Time, excludeID string) (Verdict, error) {
	if proposed.Add(-LeadTime).Before(now) {
		return reject(ReasonLeadTime), nil
	}

	taken, err := p.meetups.OwnerHasMeetupAt(ctx, ownerID, clock.HourStart(proposed), excludeID)
	if err != nil {
		return Verdict{}, fmt.Errorf("check meetup slot: %w", err)
	}
	if taken {
		return reject(ReasonDoubleBooked), nil
	}

	return accept(), nil
}

// CanSubscribe checks subscription eligibility. Checks run in a fixed order
// and the first failing one decides the reason.
func (p *Policy) CanSubscribe(ctx context.Context, userID string, meetup *model.Meetup, now time.Time) (Verdict, error) {
	if meetup.OwnedBy(userID) {
		return reject(ReasonSelfSubscribe), nil
	}

	if meetup.IsPast(now) {
		return reject(ReasonPastMeetup), nil
	}

	exists, err := p.subscriptions.SubscriptionExists(ctx, userID, meetup.ID)
	if err != nil {
		return Verdict{}, fmt.Errorf("check existing subscription: %w", err)
	}
	if exists {
		return reject(ReasonAlreadySubscribed), nil
	}

	// Exact instant, not hour-truncated.
	busy, err := p.subscriptions.HasSubscriptionAt(ctx, userID, meetup.Date, meetup.ID)
	if err != nil {
		return Verdict{}, fmt.Errorf("check subscription time conflict: %w", err)
	}
	if busy {
		return reject(ReasonTimeConflict), nil
	}

	return accept(), nil
}
