package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{-3, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{6, time.Minute},
		{50, time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, retryDelay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestRetryDelayIsMonotonic(t *testing.T) {
	prev := retryDelay(0)
	for i := 1; i <= maxAttempts; i++ {
		d := retryDelay(i)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}
