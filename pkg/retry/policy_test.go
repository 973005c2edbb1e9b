package retry

import (
	"testing"
	"time"
)

func fixedRand(value float64) func() float64 {
	return func() float64 { return value }
}

func TestRetryDelayExponentialSchedule(t *testing.T) {
	t.Parallel()
	// Midpoint jitter (randFn = 0.5) yields the unjittered base delay.
	policy := NewPolicy(WithPolicyRand(fixedRand(0.5)))

	cases := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "negative attempt clamps to base", attempt: -3, want: time.Second},
		{name: "attempt zero", attempt: 0, want: time.Second},
		{name: "attempt one", attempt: 1, want: 2 * time.Second},
		{name: "attempt two", attempt: 2, want: 4 * time.Second},
		{name: "attempt three", attempt: 3, want: 8 * time.Second},
		{name: "attempt four", attempt: 4, want: 16 * time.Second},
		{name: "attempt five caps", attempt: 5, want: 16 * time.Second},
		{name: "large attempt caps", attempt: 40, want: 16 * time.Second},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := policy.RetryDelay(tc.attempt); got != tc.want {
				t.Fatalf("RetryDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
			}
		})
	}
}

func TestRetryDelayJitterBounds(t *testing.T) {
	t.Parallel()
	lower := NewPolicy(WithPolicyRand(fixedRand(0)))
	upper := NewPolicy(WithPolicyRand(fixedRand(0.999999)))

	for attempt := 0; attempt <= maxExponent+1; attempt++ {
		base := baseDelay << attempt
		if attempt > maxExponent {
			base = baseDelay << maxExponent
		}
		floor := time.Duration(float64(base) * (1 - jitterFraction))
		ceiling := time.Duration(float64(base) * (1 + jitterFraction))

		low := lower.RetryDelay(attempt)
		if low != floor {
			t.Fatalf("attempt %d: rand 0 must give the floor %v, got %v", attempt, floor, low)
		}
		high := upper.RetryDelay(attempt)
		if high < low || high > ceiling {
			t.Fatalf("attempt %d: delay %v outside (%v, %v]", attempt, high, low, ceiling)
		}
	}
}

func TestRetryDelayJitterVaries(t *testing.T) {
	t.Parallel()
	values := []float64{0.1, 0.9}
	index := 0
	policy := NewPolicy(WithPolicyRand(func() float64 {
		value := values[index%len(values)]
		index++
		return value
	}))

	first := policy.RetryDelay(2)
	second := policy.RetryDelay(2)
	if first == second {
		t.Fatalf("distinct jitter draws must give distinct delays: %v", first)
	}
}

func TestNextRetryTime(t *testing.T) {
	t.Parallel()
	now := time.Unix(1700000000, 0).UTC()
	policy := NewPolicy(
		WithPolicyClock(func() time.Time { return now }),
		WithPolicyRand(fixedRand(0.5)),
	)

	if got, want := policy.NextRetryTime(1), now.Add(2*time.Second); !got.Equal(want) {
		t.Fatalf("NextRetryTime(1) = %v, want %v", got, want)
	}
}

func TestShouldRetry(t *testing.T) {
	t.Parallel()
	policy := NewPolicy()

	cases := []struct {
		name    string
		attempt int
		code    string
		want    bool
	}{
		{name: "first attempt transient", attempt: 0, code: "processing_error", want: true},
		{name: "first attempt terminal", attempt: 0, code: "card_declined", want: false},
		{name: "empty code permits retry", attempt: 2, code: "", want: true},
		{name: "unknown code permits retry", attempt: 2, code: "mystery_code", want: true},
		{name: "attempt limit reached", attempt: maxAttempts, code: "", want: false},
		{name: "beyond attempt limit", attempt: maxAttempts + 3, code: "processing_error", want: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := policy.ShouldRetry(tc.attempt, tc.code); got != tc.want {
				t.Fatalf("ShouldRetry(%d, %q) = %v, want %v", tc.attempt, tc.code, got, tc.want)
			}
		})
	}
}
