package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fastConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TestWithBackoffRecovers verifies a transient failure retries to success.
func TestWithBackoffRecovers(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), zaptest.NewLogger(t), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// TestWithBackoffExhausts verifies the attempt budget bounds the retries and
// the last error surfaces.
func TestWithBackoffExhausts(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), zaptest.NewLogger(t), "broken", func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

// TestWithBackoffCancellation verifies a cancelled context stops the loop.
func TestWithBackoffCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithBackoff(ctx, fastConfig(), zaptest.NewLogger(t), "cancelled", func() error {
		return errors.New("never recovers")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
