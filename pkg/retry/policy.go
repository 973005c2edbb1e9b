package retry

import (
	"math/rand"
	"time"
)

const (
	baseDelay      = time.Second
	maxExponent    = 4
	maxAttempts    = 5
	jitterFraction = 0.25
)

// Policy computes backoff delays and retry decisions. Every input,
// including negative attempts and empty codes, has a defined result.
type Policy struct {
	nowFn  func() time.Time
	randFn func() float64
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithPolicyClock overrides the time source, for tests.
func WithPolicyClock(now func() time.Time) PolicyOption {
	return func(policy *Policy) {
		if now != nil {
			policy.nowFn = now
		}
	}
}

// WithPolicyRand overrides the jitter source with a func returning
// values in [0,1), for tests.
func WithPolicyRand(random func() float64) PolicyOption {
	return func(policy *Policy) {
		if random != nil {
			policy.randFn = random
		}
	}
}

// NewPolicy wires a Policy.
func NewPolicy(options ...PolicyOption) *Policy {
	policy := &Policy{nowFn: time.Now, randFn: rand.Float64}
	for _, option := range options {
		if option != nil {
			option(policy)
		}
	}
	return policy
}

// RetryDelay returns 2^attempt seconds capped at 16s (the attempt-4
// value), with ±25% uniform jitter so synchronized callers fan out.
// Negative attempts behave as attempt 0.
func (policy *Policy) RetryDelay(attempt int) time.Duration {
	exponent := attempt
	if exponent < 0 {
		exponent = 0
	}
	if exponent > maxExponent {
		exponent = maxExponent
	}
	base := baseDelay << exponent
	jitter := 1 - jitterFraction + 2*jitterFraction*policy.randFn()
	return time.Duration(float64(base) * jitter)
}

// NextRetryTime returns now plus RetryDelay(attempt).
func (policy *Policy) NextRetryTime(attempt int) time.Time {
	return policy.nowFn().Add(policy.RetryDelay(attempt))
}

// ShouldRetry reports whether another attempt is permitted: false once
// five attempts have been made or the last error was terminal, true
// otherwise, including for empty and unclassified codes.
func (policy *Policy) ShouldRetry(attempt int, errorCode string) bool {
	if attempt >= maxAttempts {
		return false
	}
	return !IsTerminalError(errorCode)
}
