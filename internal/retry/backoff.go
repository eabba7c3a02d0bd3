// Package retry implements the exponential-backoff policy and
// transient/permanent error classification used by the Sync Engine
// (§4.B, §7). The backoff arithmetic is adapted from the Cortex
// teacher's internal/dispatch/backoff.go and retry.go — a few lines of
// float math that don't warrant pulling in a third-party backoff
// library (see DESIGN.md).
package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy controls retry timing for transient external failures.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
	MaxDelay    time.Duration
}

// DefaultPolicy matches §4.B: base 1s, factor 2, cap at 3 attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Base:        1 * time.Second,
		Factor:      2,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns the backoff duration before retry attempt n (1-indexed),
// capped at MaxDelay, then multiplied by up to 10% jitter (so a capped
// delay can reach 1.1×MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}

	raw := float64(p.Base) * math.Pow(factor, float64(attempt-1))
	if math.IsNaN(raw) || math.IsInf(raw, 0) || (p.MaxDelay > 0 && raw > float64(p.MaxDelay)) {
		raw = float64(p.MaxDelay)
	}

	jitter := 1.0 + rand.Float64()*0.1
	return time.Duration(raw * jitter)
}

// ErrPermanent wraps an error to mark it as non-retryable (4xx except 429).
type ErrPermanent struct {
	Err error
}

func (e *ErrPermanent) Error() string { return e.Err.Error() }
func (e *ErrPermanent) Unwrap() error { return e.Err }

// Permanent marks err as a permanent, non-retryable failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &ErrPermanent{Err: err}
}

// IsPermanent reports whether err was marked non-retryable.
func IsPermanent(err error) bool {
	var p *ErrPermanent
	return errors.As(err, &p)
}

// Do runs fn up to policy.MaxAttempts times, sleeping Delay(attempt)
// between attempts, stopping immediately on a permanent error or when
// sleep returns an error (e.g. its context was cancelled), in which case
// that error is returned. Otherwise it returns fn's last error.
func Do(sleep func(d time.Duration) error, policy Policy, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		lastErr = err
		if attempt == policy.MaxAttempts {
			break
		}
		if sleepErr := sleep(policy.Delay(attempt)); sleepErr != nil {
			return sleepErr
		}
	}
	return lastErr
}
