package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/meetapp/meetapp/internal/metrics"
	"github.com/meetapp/meetapp/internal/model"
)

const (
	// DefaultBufferSize is the capacity of the hand-off channel.
	DefaultBufferSize = 256

	// DefaultHandoffTimeout is how long Enqueue waits on a full buffer.
	DefaultHandoffTimeout = 50 * time.Millisecond

	// DefaultPublishTimeout bounds a single queue publish.
	DefaultPublishTimeout = 2 * time.Second
)

// Dispatcher errors.
var (
	ErrDispatcherClosed = errors.New("dispatcher closed")
	ErrBufferFull       = errors.New("notification buffer full")
)

// DispatcherConfig tunes the hand-off buffer.
type DispatcherConfig struct {
	BufferSize     int
	HandoffTimeout time.Duration
	PublishTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.HandoffTimeout <= 0 {
		c.HandoffTimeout = DefaultHandoffTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	return c
}

// Dispatcher hands jobs from request handlers to a background publisher.
// Callers never wait on the queue itself.
type Dispatcher struct {
	queue          Queue
	jobs           chan model.NotificationJob
	handoffTimeout time.Duration
	publishTimeout time.Duration
	logger         *slog.Logger
	metrics        metrics.Recorder

	mu      sync.RWMutex
	started bool
	closed  bool
	quit    chan struct{}
	done    chan struct{}
}

// NewDispatcher creates a dispatcher publishing to queue.
func NewDispatcher(queue Queue, cfg DispatcherConfig, logger *slog.Logger, recorder metrics.Recorder) *Dispatcher {
	cfg = cfg.withDefaults()
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Dispatcher{
		queue:          queue,
		jobs:           make(chan model.NotificationJob, cfg.BufferSize),
		handoffTimeout: cfg.HandoffTimeout,
		publishTimeout: cfg.PublishTimeout,
		logger:         logger.With("component", "notification.dispatcher"),
		metrics:        recorder,
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start launches the publisher goroutine. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	go d.run()
}

// Enqueue hands a job to the publisher. When the buffer stays full for the
// hand-off timeout the job is dropped and ErrBufferFull returned.
func (d *Dispatcher) Enqueue(ctx context.Context, job model.NotificationJob) error {
	if err := ValidateJob(job); err != nil {
		d.metrics.IncNotificationEnqueued("dropped")
		return err
	}

	// Held across the send so Shutdown cannot close while a hand-off is in flight.
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.IncNotificationEnqueued("dropped")
		return ErrDispatcherClosed
	}

	select {
	case d.jobs <- job:
		d.metrics.IncNotificationEnqueued("accepted")
		return nil
	default:
	}

	timer := time.NewTimer(d.handoffTimeout)
	defer timer.Stop()

	select {
	case d.jobs <- job:
		d.metrics.IncNotificationEnqueued("accepted")
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	d.logger.Warn("notification buffer full, dropping job",
		"job_id", job.ID,
		"meetup_id", job.MeetupID,
	)
	d.metrics.IncNotificationEnqueued("dropped")
	return ErrBufferFull
}

// Shutdown stops accepting jobs and waits for buffered ones to be published.
// It implements server.ShutdownFunc.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	close(d.quit)
	d.mu.Unlock()

	if !started {
		return d.queue.Close()
	}

	select {
	case <-d.done:
		d.logger.Info("notification dispatcher drained")
		return d.queue.Close()
	case <-ctx.Done():
		d.logger.Warn("notification dispatcher shutdown timed out", "buffered", len(d.jobs))
		// An in-flight publish fails against the closed queue and is logged.
		return errors.Join(ctx.Err(), d.queue.Close())
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		select {
		case job := <-d.jobs:
			d.publish(job)
		case <-d.quit:
			for {
				select {
				case job := <-d.jobs:
					d.publish(job)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) publish(job model.NotificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.publishTimeout)
	defer cancel()

	if err := d.queue.Publish(ctx, job); err != nil {
		d.logger.Warn("failed to publish notification job",
			"job_id", job.ID,
			"meetup_id", job.MeetupID,
			"error", err,
		)
		d.metrics.IncNotificationPublished("failed")
		return
	}

	d.logger.Debug("notification job published", "job_id", job.ID)
	d.metrics.IncNotificationPublished("success")
}
