package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/meetapp/meetapp/internal/metrics"
)

// KafkaWorker consumes notification jobs from a Kafka topic. Kafka has no
// per-message redelivery, so failed jobs are retried in place on the
// NextRetryDelay schedule before the offset is committed.
type KafkaWorker struct {
	reader     *kafka.Reader
	deadLetter *kafka.Writer
	processor  *Processor
	logger     *slog.Logger
	metrics    metrics.Recorder

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewKafkaWorker creates a consumer in the notification_workers group.
func NewKafkaWorker(cfg KafkaConfig, processor *Processor, logger *slog.Logger, recorder metrics.Recorder) *KafkaWorker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  ConsumerGroup,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  DefaultBlockTimeout,
	})
	return &KafkaWorker{
		reader:     reader,
		deadLetter: newKafkaWriter(cfg.Brokers, cfg.DeadLetterTopic()),
		processor:  processor,
		logger:     logger.With("component", "notification.kafka_worker", "topic", cfg.Topic),
		metrics:    recorder,
	}
}

// Run consumes until the context is cancelled or Shutdown is called.
func (w *KafkaWorker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	w.logger.Info("notification kafka worker started")

	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("notification kafka worker stopping")
				return nil
			}
			w.logger.Error("fetch message failed", "error", err)
			sleep(ctx, time.Second)
			continue
		}

		w.metrics.SetNotificationQueueDepth(w.reader.Stats().Lag)

		if !w.handle(ctx, msg) {
			// Context cancelled mid-retry; the uncommitted offset is redelivered.
			return nil
		}

		if err := w.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

// Shutdown stops consuming and closes the reader and dead-letter writer.
// It implements server.ShutdownFunc.
func (w *KafkaWorker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			w.logger.Warn("notification kafka worker shutdown timed out")
			return ctx.Err()
		}
	}

	return errors.Join(w.reader.Close(), w.deadLetter.Close())
}

// handle processes a message until it can be committed. It returns false
// only when the context ends first.
func (w *KafkaWorker) handle(ctx context.Context, msg kafka.Message) bool {
	job, err := DecodeJob(msg.Value)
	if err != nil {
		w.sendDeadLetter(ctx, msg, "validation_error", err.Error())
		return true
	}

	for retry := 0; ; retry++ {
		outcome := w.processor.Process(ctx, job)
		switch outcome {
		case OutcomeRetry:
			delay := NextRetryDelay(retry)
			w.logger.Warn("retrying notification job", "job_id", job.ID, "retry", retry+1, "backoff", delay)
			sleep(ctx, delay)
			if ctx.Err() != nil {
				return false
			}
		case OutcomeExhausted:
			w.sendDeadLetter(ctx, msg, "attempts_exhausted", fmt.Sprintf("gave up after %d attempts", w.processor.MaxAttempts()))
			return true
		default:
			return true
		}
	}
}

func (w *KafkaWorker) sendDeadLetter(ctx context.Context, msg kafka.Message, reason, detail string) {
	w.logger.Warn("dead-lettering notification job",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"reason", reason,
		"detail", detail,
	)

	err := w.deadLetter.WriteMessages(ctx, kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "reason", Value: []byte(reason)},
			kafka.Header{Key: "detail", Value: []byte(detail)},
			kafka.Header{Key: "dead_lettered_at", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	})
	if err != nil {
		w.logger.Error("failed to write to dead-letter topic", "offset", msg.Offset, "error", err)
	}

	w.metrics.IncNotificationProcessed("dead_lettered")
}
