package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Defaults applied to zero-valued Policy fields.
const (
	DefaultAttempts   = 3
	DefaultDelay      = time.Second
	DefaultMultiplier = 2.0

	// JitterFactor is the maximum relative perturbation applied to a
	// computed backoff.
	JitterFactor = 0.25
)

// Policy configures one retry loop.
type Policy struct {
	// Attempts is the total number of calls allowed, including the first.
	Attempts int
	// Delay is the wait before the second attempt.
	Delay time.Duration
	// Multiplier scales the wait after each failure.
	Multiplier float64
	// DisableJitter turns off the ±25% perturbation of computed waits.
	DisableJitter bool

	// ShouldRetry reports whether err may be retried. nil retries everything.
	ShouldRetry func(err error) bool

	// RetryAfter extracts a server-specified wait from err. When ok is true
	// the returned duration is used as-is.
	RetryAfter func(err error) (wait time.Duration, ok bool)

	// OnRetry is called before each wait with the 1-based number of the
	// attempt about to run.
	OnRetry func(attempt int, wait time.Duration, err error)

	// Sleep waits for d or until ctx is done. nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Delay <= 0 {
		p.Delay = DefaultDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	return p
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.Multiplier = p.Multiplier
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.RandomizationFactor = JitterFactor
	if p.DisableJitter {
		b.RandomizationFactor = 0
	}
	b.Reset()
	return b
}

// Do runs op until it succeeds, the policy gives up, or ctx is done.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	b := p.backOff()

	for attempt := 1; ; attempt++ {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if attempt >= p.Attempts {
			return res, err
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(err) {
			return res, err
		}

		// Advance the exponential sequence on every failure so the
		// attempt index stays aligned even when an override is used.
		wait := b.NextBackOff()
		if p.RetryAfter != nil {
			if override, ok := p.RetryAfter(err); ok {
				wait = override
			}
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, wait, err)
		}

		if serr := p.Sleep(ctx, wait); serr != nil {
			var zero T
			return zero, serr
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
