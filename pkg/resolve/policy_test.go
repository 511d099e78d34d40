package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyBoundedAttempts(t *testing.T) {
	p := NewRetryPolicy(3, time.Millisecond, 4*time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	p := NewRetryPolicy(5, time.Millisecond, 4*time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryPolicyTerminalErrorNotRetried(t *testing.T) {
	p := NewRetryPolicy(5, time.Millisecond, 4*time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Terminal(ErrUnauthorized)
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, 1, calls, "401/403 are terminal, not soft failures")
}

func TestRetryPolicyHonorsContextCancellation(t *testing.T) {
	p := NewRetryPolicy(10, 50*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(3, 30*time.Second)
	fail := func(ctx context.Context) error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		require.Error(t, b.Do(context.Background(), fail))
	}

	calls := 0
	err := b.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Zero(t, calls, "no network attempt inside the cool-down window")
}

func TestBreakerClosesAfterCooldown(t *testing.T) {
	b := NewBreaker(2, 30*time.Second)
	now := time.Now()
	b.SetClock(func() time.Time { return now })

	fail := func(ctx context.Context) error { return errors.New("boom") }
	require.Error(t, b.Do(context.Background(), fail))
	require.Error(t, b.Do(context.Background(), fail))
	require.ErrorIs(t, b.Do(context.Background(), fail), ErrCircuitOpen)

	now = now.Add(31 * time.Second)
	calls := 0
	err := b.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, 30*time.Second)
	fail := func(ctx context.Context) error { return errors.New("boom") }
	ok := func(ctx context.Context) error { return nil }

	require.Error(t, b.Do(context.Background(), fail))
	require.Error(t, b.Do(context.Background(), fail))
	require.NoError(t, b.Do(context.Background(), ok))
	require.Error(t, b.Do(context.Background(), fail))
	require.Error(t, b.Do(context.Background(), fail))

	// Still closed: the success broke the consecutive run.
	calls := 0
	_ = b.Do(context.Background(), func(ctx context.Context) error { calls++; return nil })
	require.Equal(t, 1, calls)
}

func TestBreakerIgnoresTerminalErrors(t *testing.T) {
	b := NewBreaker(2, 30*time.Second)
	authFail := func(ctx context.Context) error { return Terminal(ErrUnauthorized) }

	for i := 0; i < 5; i++ {
		require.Error(t, b.Do(context.Background(), authFail))
	}

	calls := 0
	_ = b.Do(context.Background(), func(ctx context.Context) error { calls++; return nil })
	require.Equal(t, 1, calls, "auth failures indicate misconfiguration and do not open the breaker")
}
