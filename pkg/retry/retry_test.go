package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFlaky = errors.New("flaky")

func fast() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fast(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(errFlaky)
		}
		return "ok", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_ReturnsUnwrappedLastError(t *testing.T) {
	var retries []int
	p := fast()
	p.MaxAttempts = 2
	p.OnRetry = func(attempt int, err error, _ time.Duration) {
		retries = append(retries, attempt)
	}

	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, Transient(errFlaky)
	})

	assert.Equal(t, errFlaky, err)
	var te *TransientError
	assert.False(t, errors.As(err, &te))
	assert.Equal(t, []int{1}, retries)
}

func TestDo_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fast(), func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}.normalized()

	assert.Equal(t, 100*time.Millisecond, p.delay(1, 0))
	assert.Equal(t, 400*time.Millisecond, p.delay(3, 0))
	assert.Equal(t, time.Second, p.delay(10, 0), "capped at MaxDelay")
	assert.Equal(t, 700*time.Millisecond, p.delay(1, 700*time.Millisecond), "server minimum wins")
	assert.Equal(t, time.Second, p.delay(1, time.Minute), "server minimum is capped too")
}

func TestPolicy_Normalized(t *testing.T) {
	p := Policy{Jitter: 3}.normalized()

	assert.Equal(t, DefaultPolicy().MaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultPolicy().BaseDelay, p.BaseDelay)
	assert.Equal(t, DefaultPolicy().MaxDelay, p.MaxDelay)
	assert.Equal(t, 1.0, p.Jitter)
}

func TestTransientAfter(t *testing.T) {
	err := TransientAfter(errFlaky, 2*time.Second)

	var te *TransientError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, 2*time.Second, te.After)
	assert.ErrorIs(t, err, errFlaky)
	assert.Nil(t, Transient(nil))
	assert.Nil(t, TransientAfter(nil, time.Second))
}
