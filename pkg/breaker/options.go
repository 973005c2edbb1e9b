package breaker

import "time"

const (
	defaultFailureThreshold = 5
	defaultOpenDuration     = 30 * time.Second
)

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(registry *Registry) {
		if now != nil {
			registry.nowFn = now
		}
	}
}

// WithFailureThreshold overrides the consecutive-failure count that
// opens a circuit.
func WithFailureThreshold(threshold int) Option {
	return func(registry *Registry) {
		if threshold > 0 {
			registry.failureThreshold = threshold
		}
	}
}

// WithOpenDuration overrides the default open window applied when a
// circuit trips without a per-call duration.
func WithOpenDuration(duration time.Duration) Option {
	return func(registry *Registry) {
		if duration > 0 {
			registry.openDuration = duration
		}
	}
}

// WithStateChangeHook registers a callback fired on every state
// transition. The hook runs while the entry lock is held and must not
// re-enter the registry.
func WithStateChangeHook(hook func(key string, from State, to State)) Option {
	return func(registry *Registry) {
		registry.onStateChange = hook
	}
}
