// Package notification delivers subscription mails to meetup organizers.
// Jobs are handed off by the Dispatcher, carried by a Queue, and processed
// by a Worker that records each attempt in the delivery log.
package notification

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meetapp/meetapp/internal/model"
)

const maxIDLength = 64

// ErrInvalidJob is returned for jobs that can never be processed.
var ErrInvalidJob = errors.New("invalid notification job")

// ValidateJob checks that a job carries everything the worker needs.
func ValidateJob(job model.NotificationJob) error {
	if job.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidJob)
	}
	if len(job.ID) > maxIDLength {
		return fmt.Errorf("%w: id too long", ErrInvalidJob)
	}
	if !job.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, job.Kind)
	}
	if job.MeetupID == "" {
		return fmt.Errorf("%w: meetup_id is required", ErrInvalidJob)
	}
	if job.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidJob)
	}
	if job.EnqueuedAt.IsZero() {
		return fmt.Errorf("%w: enqueued_at must be set", ErrInvalidJob)
	}
	return nil
}

// EncodeJob serializes a job to its wire format.
func EncodeJob(job model.NotificationJob) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return data, nil
}

// DecodeJob parses and validates a job from its wire format.
func DecodeJob(data []byte) (model.NotificationJob, error) {
	var job model.NotificationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if err := ValidateJob(job); err != nil {
		return job, err
	}
	return job, nil
}
