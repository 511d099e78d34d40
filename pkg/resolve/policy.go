package resolve

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrCircuitOpen is returned by Breaker.Do while the cool-down window is in
// effect; no network attempt is made.
var ErrCircuitOpen = errors.New("circuit open")

// terminalError marks errors that retry must not mask (auth failures from
// the internal resolver).
type terminalError struct{ err error }

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so the retry policy gives up immediately.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

func isTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// RetryPolicy retries fn with exponential backoff. Terminal errors and
// context cancellation stop the loop early.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, MaxDelay: maxDelay}
}

func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil || isTerminal(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}

// Breaker is a consecutive-failure circuit breaker. After FailureThreshold
// failures in a row it opens for Cooldown, during which Do fails immediately
// with ErrCircuitOpen. A success in any state closes it.
//
// The counters are process-wide and advisory; last-writer-wins races on
// refresh are tolerated.
type Breaker struct {
	FailureThreshold int
	Cooldown         time.Duration

	// now is swappable for tests.
	now func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

func NewBreaker(failureThreshold int, cooldown time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{FailureThreshold: failureThreshold, Cooldown: cooldown, now: time.Now}
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().After(b.openUntil)
}

func (b *Breaker) report(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		b.openUntil = time.Time{}
		return
	}
	// Auth errors indicate misconfiguration, not backend unavailability;
	// they do not count toward opening the breaker.
	if isTerminal(err) {
		return
	}
	b.failures++
	if b.failures >= b.FailureThreshold {
		b.openUntil = b.now().Add(b.Cooldown)
		b.failures = 0
	}
}

func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	b.report(err)
	return err
}

// Reset clears all breaker state. Test hook.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
}

// SetClock swaps the time source. Test hook.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
