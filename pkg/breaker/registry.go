// Package breaker implements a process-wide circuit breaker registry
// keyed by opaque dependency name. Unrelated keys never contend: the
// registry lock guards map membership only, and each entry carries its
// own mutex for state transitions.
package breaker

import (
	"sync"
	"time"
)

// State enumerates breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// String returns the state tag.
func (state State) String() string {
	return string(state)
}

// Snapshot is a point-in-time view of one breaker entry.
type Snapshot struct {
	FailureCount int
	State        State
	ResetTime    time.Time
}

// Registry tracks consecutive failures per dependency key. No entry
// exists until the first recorded failure.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	nowFn            func() time.Time
	failureThreshold int
	openDuration     time.Duration
	onStateChange    func(key string, from State, to State)
}

type entry struct {
	mu           sync.Mutex
	failureCount int
	state        State
	resetTime    time.Time
}

// NewRegistry wires a Registry with the supplied options.
func NewRegistry(options ...Option) *Registry {
	registry := &Registry{
		entries:          make(map[string]*entry),
		nowFn:            time.Now,
		failureThreshold: defaultFailureThreshold,
		openDuration:     defaultOpenDuration,
	}
	for _, option := range options {
		if option != nil {
			option(registry)
		}
	}
	return registry
}

// RecordFailure increments the consecutive-failure count for key and
// opens the circuit once the threshold is reached. A failure during
// the half-open probe reopens immediately. An optional openFor
// duration overrides the registry default for this transition.
func (registry *Registry) RecordFailure(key string, openFor ...time.Duration) {
	duration := registry.openDuration
	if len(openFor) > 0 && openFor[0] > 0 {
		duration = openFor[0]
	}

	breakerEntry := registry.getOrCreate(key)
	breakerEntry.mu.Lock()
	defer breakerEntry.mu.Unlock()

	breakerEntry.failureCount++
	switch breakerEntry.state {
	case StateClosed:
		if breakerEntry.failureCount >= registry.failureThreshold {
			registry.transition(key, breakerEntry, StateOpen)
			breakerEntry.resetTime = registry.nowFn().Add(duration)
		}
	case StateHalfOpen:
		registry.transition(key, breakerEntry, StateOpen)
		breakerEntry.resetTime = registry.nowFn().Add(duration)
	case StateOpen:
		// Already open; the count keeps growing but resetTime stands.
	}
}

// RecordSuccess resets the consecutive-failure count and closes the
// circuit. Recording success against an unknown key is a no-op.
func (registry *Registry) RecordSuccess(key string) {
	registry.mu.RLock()
	breakerEntry, exists := registry.entries[key]
	registry.mu.RUnlock()
	if !exists {
		return
	}

	breakerEntry.mu.Lock()
	defer breakerEntry.mu.Unlock()
	breakerEntry.failureCount = 0
	breakerEntry.resetTime = time.Time{}
	if breakerEntry.state != StateClosed {
		registry.transition(key, breakerEntry, StateClosed)
	}
}

// IsCircuitOpen reports whether callers must fail fast on key. Once an
// open entry's reset time elapses the entry flips to half-open and the
// call reports false so the caller issues one probe.
func (registry *Registry) IsCircuitOpen(key string) bool {
	registry.mu.RLock()
	breakerEntry, exists := registry.entries[key]
	registry.mu.RUnlock()
	if !exists {
		return false
	}

	breakerEntry.mu.Lock()
	defer breakerEntry.mu.Unlock()
	if breakerEntry.state != StateOpen {
		return false
	}
	if registry.nowFn().Before(breakerEntry.resetTime) {
		return true
	}
	registry.transition(key, breakerEntry, StateHalfOpen)
	return false
}

// CircuitState returns a snapshot of the entry for key, reporting
// false when no failure has ever been recorded (or after a reset).
func (registry *Registry) CircuitState(key string) (Snapshot, bool) {
	registry.mu.RLock()
	breakerEntry, exists := registry.entries[key]
	registry.mu.RUnlock()
	if !exists {
		return Snapshot{}, false
	}

	breakerEntry.mu.Lock()
	defer breakerEntry.mu.Unlock()
	return Snapshot{
		FailureCount: breakerEntry.failureCount,
		State:        breakerEntry.state,
		ResetTime:    breakerEntry.resetTime,
	}, true
}

// ResetCircuit deletes the entry for key entirely.
func (registry *Registry) ResetCircuit(key string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.entries, key)
}

func (registry *Registry) getOrCreate(key string) *entry {
	registry.mu.RLock()
	breakerEntry, exists := registry.entries[key]
	registry.mu.RUnlock()
	if exists {
		return breakerEntry
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if breakerEntry, exists = registry.entries[key]; exists {
		return breakerEntry
	}
	breakerEntry = &entry{state: StateClosed}
	registry.entries[key] = breakerEntry
	return breakerEntry
}

// transition mutates entry state under the entry lock. The hook runs
// while that lock is held; implementations must not re-enter the
// registry for the same key.
func (registry *Registry) transition(key string, breakerEntry *entry, to State) {
	from := breakerEntry.state
	if from == to {
		return
	}
	breakerEntry.state = to
	if registry.onStateChange != nil {
		registry.onStateChange(key, from, to)
	}
}
