package rabbitmq

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(cfg *Config) *Client {
	return &Client{
		config: cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		queues: make(map[string]struct{}),
	}
}

func TestPublishBackoff(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		attempt  int
		expected time.Duration
	}{
		{
			name:     "first retry uses base delay",
			config:   Config{PublishRetryDelay: 100 * time.Millisecond, PublishBackoffMult: 3.0},
			attempt:  0,
			expected: 100 * time.Millisecond,
		},
		{
			name:     "configured multiplier grows the delay",
			config:   Config{PublishRetryDelay: 100 * time.Millisecond, PublishBackoffMult: 3.0},
			attempt:  1,
			expected: 300 * time.Millisecond,
		},
		{
			name:     "multiplier compounds per attempt",
			config:   Config{PublishRetryDelay: 100 * time.Millisecond, PublishBackoffMult: 3.0},
			attempt:  2,
			expected: 900 * time.Millisecond,
		},
		{
			name:     "unset multiplier defaults to doubling",
			config:   Config{PublishRetryDelay: 50 * time.Millisecond},
			attempt:  2,
			expected: 200 * time.Millisecond,
		},
		{
			name:     "fractional multiplier",
			config:   Config{PublishRetryDelay: 100 * time.Millisecond, PublishBackoffMult: 1.5},
			attempt:  2,
			expected: 225 * time.Millisecond,
		},
		{
			name:     "unset base delay defaults to 100ms",
			config:   Config{PublishBackoffMult: 2.0},
			attempt:  1,
			expected: 200 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(&tt.config)
			assert.Equal(t, tt.expected, client.publishBackoff(tt.attempt))
		})
	}
}

func TestPublishExhaustsRetriesWhenDisconnected(t *testing.T) {
	client := testClient(&Config{
		PublishRetries:     2,
		PublishRetryDelay:  time.Millisecond,
		PublishBackoffMult: 2.0,
	})

	start := time.Now()
	err := client.Publish(context.Background(), "some_queue", []byte(`{}`))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	// Two backoff sleeps: 1ms then 2ms.
	assert.GreaterOrEqual(t, elapsed, 3*time.Millisecond)
}

func TestPublishRespectsContextDuringBackoff(t *testing.T) {
	client := testClient(&Config{
		PublishRetries:    3,
		PublishRetryDelay: time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := client.Publish(ctx, "some_queue", []byte(`{}`))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
