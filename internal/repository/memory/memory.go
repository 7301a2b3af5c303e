// Package memory provides an in-process store with the same contract and
// constraints as the PostgreSQL repository. It backs unit tests and local runs
// without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/meetapp/meetapp/internal/model"
	"github.com/meetapp/meetapp/internal/repository"
)

// Store is a mutex-guarded in-memory store.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*model.User
	files         map[string]*model.File
	meetups       map[string]*model.Meetup
	subscriptions map[string]*model.Subscription
	filesBaseURL  string
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[string]*model.User),
		files:         make(map[string]*model.File),
		meetups:       make(map[string]*model.Meetup),
		subscriptions: make(map[string]*model.Subscription),
	}
}

// SetFilesBaseURL sets the public prefix used to build file URLs.
func (s *Store) SetFilesBaseURL(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesBaseURL = strings.TrimSuffix(baseURL, "/")
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// CreateUser stores a user.
func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUserByID returns a copy of the user.
func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// CreateFile stores a file record.
func (s *Store) CreateFile(_ context.Context, file *model.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file.URL = repository.FileURL(s.filesBaseURL, file.Path)
	cp := *file
	s.files[file.ID] = &cp
	return nil
}

// CreateMeetup stores a meetup, enforcing the (owner, date) uniqueness and
// the owner and image references.
func (s *Store) CreateMeetup(_ context.Context, meetup *model.Meetup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMeetupLocked(meetup); err != nil {
		return err
	}
	cp := *meetup
	s.meetups[meetup.ID] = &cp
	return nil
}

// GetMeetupByID returns a copy of the meetup.
func (s *Store) GetMeetupByID(_ context.Context, id string) (*model.Meetup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetups[id]
	if !ok {
		return nil, repository.ErrMeetupNotFound
	}
	cp := *m
	return &cp, nil
}

// UpdateMeetup replaces a meetup's mutable fields. A reschedule is refused
// with ErrSubscriptionTimeConflict when a subscriber already holds another
// meetup at the new date.
func (s *Store) UpdateMeetup(_ context.Context, meetup *model.Meetup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.meetups[meetup.ID]
	if !ok {
		return repository.ErrMeetupNotFound
	}
	candidate := *existing
	candidate.Title = meetup.Title
	candidate.Description = meetup.Description
	candidate.Location = meetup.Location
	candidate.Date = meetup.Date
	candidate.ImageID = meetup.ImageID
	if err := s.checkMeetupLocked(&candidate); err != nil {
		return err
	}
	if !candidate.Date.Equal(existing.Date) && s.subscriberConflictLocked(meetup.ID, candidate.Date) {
		return repository.ErrSubscriptionTimeConflict
	}
	candidate.UpdatedAt = time.Now().UTC()
	meetup.UpdatedAt = candidate.UpdatedAt
	s.meetups[meetup.ID] = &candidate
	return nil
}

// DeleteMeetup removes a meetup and its subscriptions.
func (s *Store) DeleteMeetup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetups[id]; !ok {
		return repository.ErrMeetupNotFound
	}
	delete(s.meetups, id)
	for subID, sub := range s.subscriptions {
		if sub.MeetupID == id {
			delete(s.subscriptions, subID)
		}
	}
	return nil
}

// OwnerHasMeetupAt reports whether the owner has another meetup at date.
func (s *Store) OwnerHasMeetupAt(_ context.Context, ownerID string, date time.Time, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerHasMeetupAtLocked(ownerID, date, excludeID), nil
}

// ListMeetups returns a page of meetups ordered by date with their joins.
func (s *Store) ListMeetups(_ context.Context, filter repository.MeetupFilter, limit, offset int) ([]*model.MeetupDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*model.Meetup
	for _, m := range s.meetups {
		if filter.From != nil && m.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.Date.After(*filter.To) {
			continue
		}
		matched = append(matched, m)
	}
	sortMeetups(matched)

	if offset < 0 || limit <= 0 || offset >= len(matched) {
		return []*model.MeetupDetails{}, nil
	}
	end := len(matched)
	if limit < end-offset {
		end = offset + limit
	}

	out := make([]*model.MeetupDetails, 0, end-offset)
	for _, m := range matched[offset:end] {
		d := &model.MeetupDetails{Meetup: *m, SubscriberIDs: s.subscriberIDsLocked(m.ID)}
		if owner, ok := s.users[m.OwnerID]; ok {
			d.Owner = owner.Summary(s.avatarLocked(owner))
		}
		d.Image = s.fileLocked(m.ImageID)
		out = append(out, d)
	}
	return out, nil
}

// ListMeetupsByOwner returns the owner's meetups ordered by date.
func (s *Store) ListMeetupsByOwner(_ context.Context, ownerID string) ([]*model.Meetup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Meetup
	for _, m := range s.meetups {
		if m.OwnerID == ownerID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortMeetups(out)
	return out, nil
}

// CreateSubscription stores a subscription. The uniqueness and exact-date
// checks run under the write lock against the stored meetup date, so
// concurrent subscribes and reschedules cannot both pass.
func (s *Store) CreateSubscription(_ context.Context, sub *model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetups[sub.MeetupID]
	if !ok {
		return repository.ErrMeetupNotFound
	}
	if _, ok := s.users[sub.UserID]; !ok {
		return repository.ErrReferenceNotFound
	}
	if s.subscriptionExistsLocked(sub.UserID, sub.MeetupID) {
		return repository.ErrSubscriptionExists
	}
	if s.hasSubscriptionAtLocked(sub.UserID, m.Date, sub.MeetupID) {
		return repository.ErrSubscriptionTimeConflict
	}

	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

// SubscriptionExists reports whether the user is subscribed to the meetup.
func (s *Store) SubscriptionExists(_ context.Context, userID, meetupID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscriptionExistsLocked(userID, meetupID), nil
}

// HasSubscriptionAt reports whether the user holds a subscription to another
// meetup dated exactly at date.
func (s *Store) HasSubscriptionAt(_ context.Context, userID string, date time.Time, excludeMeetupID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasSubscriptionAtLocked(userID, date, excludeMeetupID), nil
}

// ListUpcomingSubscriptions returns the user's subscriptions to meetups
// dated after the given instant, earliest first.
func (s *Store) ListUpcomingSubscriptions(_ context.Context, userID string, after time.Time) ([]*model.SubscriptionDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.SubscriptionDetails
	for _, sub := range s.subscriptions {
		if sub.UserID != userID {
			continue
		}
		m, ok := s.meetups[sub.MeetupID]
		if !ok || !m.Date.After(after) {
			continue
		}
		d := &model.SubscriptionDetails{Subscription: *sub, Meetup: *m}
		if owner, ok := s.users[m.OwnerID]; ok {
			d.Organizer = owner.Summary(s.avatarLocked(owner))
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Meetup.Date.Equal(out[j].Meetup.Date) {
			return out[i].Meetup.Date.Before(out[j].Meetup.Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) checkMeetupLocked(m *model.Meetup) error {
	if _, ok := s.users[m.OwnerID]; !ok {
		return repository.ErrReferenceNotFound
	}
	if _, ok := s.files[m.ImageID]; !ok {
		return repository.ErrReferenceNotFound
	}
	if s.ownerHasMeetupAtLocked(m.OwnerID, m.Date, m.ID) {
		return repository.ErrMeetupSlotTaken
	}
	return nil
}

func (s *Store) ownerHasMeetupAtLocked(ownerID string, date time.Time, excludeID string) bool {
	for _, m := range s.meetups {
		if m.OwnerID == ownerID && m.Date.Equal(date) && m.ID != excludeID {
			return true
		}
	}
	return false
}

func (s *Store) subscriptionExistsLocked(userID, meetupID string) bool {
	for _, sub := range s.subscriptions {
		if sub.UserID == userID && sub.MeetupID == meetupID {
			return true
		}
	}
	return false
}

func (s *Store) hasSubscriptionAtLocked(userID string, date time.Time, excludeMeetupID string) bool {
	for _, sub := range s.subscriptions {
		if sub.UserID != userID || sub.MeetupID == excludeMeetupID {
			continue
		}
		if m, ok := s.meetups[sub.MeetupID]; ok && m.Date.Equal(date) {
			return true
		}
	}
	return false
}

// subscriberConflictLocked reports whether any subscriber of meetupID is
// subscribed to another meetup dated exactly at date.
func (s *Store) subscriberConflictLocked(meetupID string, date time.Time) bool {
	for _, sub := range s.subscriptions {
		if sub.MeetupID == meetupID && s.hasSubscriptionAtLocked(sub.UserID, date, meetupID) {
			return true
		}
	}
	return false
}

func (s *Store) subscriberIDsLocked(meetupID string) []string {
	var subs []*model.Subscription
	for _, sub := range s.subscriptions {
		if sub.MeetupID == meetupID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.UserID)
	}
	return ids
}

func (s *Store) avatarLocked(u *model.User) *model.File {
	if u.AvatarID == nil {
		return nil
	}
	return s.fileLocked(*u.AvatarID)
}

func (s *Store) fileLocked(id string) *model.File {
	f, ok := s.files[id]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

func sortMeetups(meetups []*model.Meetup) {
	sort.Slice(meetups, func(i, j int) bool {
		if !meetups[i].Date.Equal(meetups[j].Date) {
			return meetups[i].Date.Before(meetups[j].Date)
		}
		return meetups[i].ID < meetups[j].ID
	})
}
