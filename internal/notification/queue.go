package notification

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/meetapp/meetapp/internal/model"
)

const (
	// StreamKey is the Redis stream carrying notification jobs.
	StreamKey = "stream:notifications"

	// DeadLetterStreamKey is the Redis stream for jobs that will never be delivered.
	DeadLetterStreamKey = "stream:notifications:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// MaxDeadLetterLen is the approximate max length of the dead-letter stream.
	MaxDeadLetterLen = 10000
)

// Queue carries jobs from the dispatcher to the workers.
type Queue interface {
	Publish(ctx context.Context, job model.NotificationJob) error
	Close() error
}

// RedisQueue publishes jobs to a Redis stream.
type RedisQueue struct {
	redis  *redis.Client
	stream string
}

// NewRedisQueue creates a queue on the default notification stream.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{redis: client, stream: StreamKey}
}

// Publish appends the job to the stream.
func (q *RedisQueue) Publish(ctx context.Context, job model.NotificationJob) error {
	data, err := EncodeJob(job)
	if err != nil {
		return err
	}

	err = q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"job_id":  job.ID,
			"payload": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (q *RedisQueue) Close() error {
	return nil
}

// KafkaConfig configures the Kafka transport.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// DeadLetterTopic returns the topic receiving exhausted jobs.
func (c KafkaConfig) DeadLetterTopic() string {
	return c.Topic + ".dlq"
}

// KafkaQueue publishes jobs to a Kafka topic, keyed by meetup id so the
// jobs of one meetup stay ordered within a partition.
type KafkaQueue struct {
	writer *kafka.Writer
}

// NewKafkaQueue creates a synchronous Kafka producer.
func NewKafkaQueue(cfg KafkaConfig) *KafkaQueue {
	return &KafkaQueue{writer: newKafkaWriter(cfg.Brokers, cfg.Topic)}
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
}

// Publish writes the job to the topic.
func (q *KafkaQueue) Publish(ctx context.Context, job model.NotificationJob) error {
	data, err := EncodeJob(job)
	if err != nil {
		return err
	}

	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   jobKey(job),
		Value: data,
		Headers: []kafka.Header{
			{Key: "job_id", Value: []byte(job.ID)},
			{Key: "kind", Value: []byte(job.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (q *KafkaQueue) Close() error {
	if q == nil || q.writer == nil {
		return nil
	}
	return q.writer.Close()
}

// jobKey returns the partition key of a job.
func jobKey(job model.NotificationJob) []byte {
	return []byte(job.MeetupID)
}
