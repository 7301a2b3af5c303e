package notification

import (
	"math/rand"
	"time"
)

// retryDelays is the in-place backoff of the Kafka worker. A retry blocks
// its partition, so the schedule stays in seconds; the Redis worker relies
// on pending-message reclaim instead.
var retryDelays = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	30 * time.Second,
}

// JitterFactor is the ±fraction of jitter applied to retry delays.
const JitterFactor = 0.2

// NextRetryDelay returns the delay before retry number retry (0-indexed),
// with ±20% jitter. Retries past the schedule reuse its last step.
func NextRetryDelay(retry int) time.Duration {
	retry = max(0, min(retry, len(retryDelays)-1))
	base := retryDelays[retry]

	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}
