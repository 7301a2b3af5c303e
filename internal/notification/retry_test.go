package notification

import (
	"fmt"
	"testing"
	"time"
)

func TestNextRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		retry    int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{-1, 800 * time.Millisecond, 1200 * time.Millisecond},
		{0, 800 * time.Millisecond, 1200 * time.Millisecond},
		{1, 4 * time.Second, 6 * time.Second},
		{2, 12 * time.Second, 18 * time.Second},
		{3, 24 * time.Second, 36 * time.Second},
		{10, 24 * time.Second, 36 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(fmt.Sprintf("retry_%d", tt.retry), func(t *testing.T) {
			t.Parallel()

			// Run multiple times to account for jitter
			for i := 0; i < 20; i++ {
				delay := NextRetryDelay(tt.retry)
				if delay < tt.minDelay || delay > tt.maxDelay {
					t.Errorf("NextRetryDelay(%d) = %v, want between %v and %v",
						tt.retry, delay, tt.minDelay, tt.maxDelay)
				}
			}
		})
	}
}
