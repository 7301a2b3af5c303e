package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meetapp/meetapp/internal/clock"
	"github.com/meetapp/meetapp/internal/metrics"
	"github.com/meetapp/meetapp/internal/model"
	"github.com/meetapp/meetapp/internal/repository"
)

// DefaultMaxAttempts is the number of delivery attempts before a job is
// dead-lettered.
const DefaultMaxAttempts = 5

// Directory looks up the meetups and users a job refers to.
type Directory interface {
	GetMeetupByID(ctx context.Context, id string) (*model.Meetup, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Outcome tells the consumer what to do with a processed message.
type Outcome int

const (
	// OutcomeDelivered means the mail went out; acknowledge.
	OutcomeDelivered Outcome = iota
	// OutcomeDuplicate means an earlier attempt already finished; acknowledge.
	OutcomeDuplicate
	// OutcomeSkipped means the job no longer applies; acknowledge.
	OutcomeSkipped
	// OutcomeRetry means the attempt failed; leave the message for redelivery.
	OutcomeRetry
	// OutcomeExhausted means attempts ran out; dead-letter and acknowledge.
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRetry:
		return "retry"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Acknowledge reports whether the message can be removed from the queue.
func (o Outcome) Acknowledge() bool {
	return o != OutcomeRetry
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	MaxAttempts int
	// Location is used to format dates in mail bodies.
	Location *time.Location
	Clock    clock.Clock
}

// Processor turns one job into one mail, recording the attempt.
type Processor struct {
	store       DeliveryStore
	directory   Directory
	mailer      Mailer
	maxAttempts int
	loc         *time.Location
	clock       clock.Clock
	logger      *slog.Logger
	metrics     metrics.Recorder
}

// NewProcessor creates a Processor.
func NewProcessor(store DeliveryStore, directory Directory, mailer Mailer, cfg ProcessorConfig, logger *slog.Logger, recorder metrics.Recorder) *Processor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Processor{
		store:       store,
		directory:   directory,
		mailer:      mailer,
		maxAttempts: cfg.MaxAttempts,
		loc:         cfg.Location,
		clock:       cfg.Clock,
		logger:      logger.With("component", "notification.processor"),
		metrics:     recorder,
	}
}

// MaxAttempts returns the configured attempt limit.
func (p *Processor) MaxAttempts() int {
	return p.maxAttempts
}

// Process handles a single job.
func (p *Processor) Process(ctx context.Context, job model.NotificationJob) Outcome {
	logger := p.logger.With("job_id", job.ID, "meetup_id", job.MeetupID)

	delivery, err := p.store.BeginAttempt(ctx, job)
	if err != nil {
		logger.Error("failed to record delivery attempt", "error", err)
		p.metrics.IncNotificationProcessed("failed")
		return OutcomeRetry
	}
	if delivery.Status.IsFinal() {
		logger.Debug("job already finished", "status", delivery.Status)
		return OutcomeDuplicate
	}

	mail, err := p.compose(ctx, job)
	if err != nil {
		if errors.Is(err, errStaleJob) {
			if err := p.store.MarkSkipped(ctx, job.ID, err.Error()); err != nil {
				logger.Error("failed to mark delivery skipped", "error", err)
				return OutcomeRetry
			}
			logger.Info("notification skipped", "reason", err.Error())
			p.metrics.IncNotificationProcessed("skipped")
			return OutcomeSkipped
		}
		return p.fail(ctx, logger, job, delivery.Attempts, err)
	}

	if err := p.mailer.Send(ctx, mail); err != nil {
		return p.fail(ctx, logger, job, delivery.Attempts, err)
	}

	if err := p.store.MarkDelivered(ctx, job.ID, p.clock.Now()); err != nil {
		// The mail is out. A retry would send it twice, so only log.
		logger.Error("failed to mark delivery delivered", "error", err)
	}

	logger.Info("notification delivered", "attempt", delivery.Attempts)
	p.metrics.IncNotificationProcessed("delivered")
	return OutcomeDelivered
}

var errStaleJob = errors.New("stale job")

func (p *Processor) compose(ctx context.Context, job model.NotificationJob) (Mail, error) {
	meetup, err := p.directory.GetMeetupByID(ctx, job.MeetupID)
	if err != nil {
		if errors.Is(err, repository.ErrMeetupNotFound) {
			return Mail{}, fmt.Errorf("%w: meetup deleted", errStaleJob)
		}
		return Mail{}, fmt.Errorf("load meetup: %w", err)
	}

	organizer, err := p.directory.GetUserByID(ctx, meetup.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Mail{}, fmt.Errorf("%w: organizer missing", errStaleJob)
		}
		return Mail{}, fmt.Errorf("load organizer: %w", err)
	}

	subscriber, err := p.directory.GetUserByID(ctx, job.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Mail{}, fmt.Errorf("%w: subscriber missing", errStaleJob)
		}
		return Mail{}, fmt.Errorf("load subscriber: %w", err)
	}

	if organizer.Email == "" {
		return Mail{}, fmt.Errorf("%w: organizer has no email", errStaleJob)
	}

	return SubscriptionMail(meetup, organizer, subscriber, p.loc), nil
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, job model.NotificationJob, attempts int, cause error) Outcome {
	if attempts >= p.maxAttempts {
		if err := p.store.MarkExhausted(ctx, job.ID, cause.Error()); err != nil {
			logger.Error("failed to mark delivery exhausted", "error", err)
		}
		logger.Error("notification attempts exhausted", "attempts", attempts, "error", cause)
		p.metrics.IncNotificationProcessed("exhausted")
		return OutcomeExhausted
	}

	if err := p.store.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		logger.Error("failed to mark delivery failed", "error", err)
	}
	logger.Warn("notification attempt failed", "attempt", attempts, "error", cause)
	p.metrics.IncNotificationProcessed("failed")
	return OutcomeRetry
}
