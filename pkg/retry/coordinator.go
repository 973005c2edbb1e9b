package retry

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxRetries bounds a payment's retry lineage unless overridden.
const DefaultMaxRetries = 3

// Coordinator errors. Scheduling after exhaustion is a contract
// violation by the caller, not a business outcome.
var (
	ErrRetryExhausted          = errors.New("retry schedule exhausted")
	ErrInvalidCoordinatorSetup = errors.New("invalid coordinator setup")
)

// AttemptRecord is one line in a payment's append-only retry history.
type AttemptRecord struct {
	AttemptedUnixUTC int64
	Success          bool
	ErrorCode        string
	ErrorMessage     string
}

// RetryState is a snapshot of a payment's retry lineage.
type RetryState struct {
	RetryCount       int
	MaxRetries       int
	NextRetryAt      *time.Time
	RetryExhausted   bool
	LastReason       string
	LastErrorCode    string
	LastErrorMessage string
	History          []AttemptRecord
}

// Schedule reports the outcome of one ScheduleRetry call.
type Schedule struct {
	Scheduled   bool
	RetryCount  int
	NextRetryAt time.Time
	Exhausted   bool
}

// Coordinator tracks retry state for a single payment lineage. Its
// methods are mutex-guarded so callers need not serialize externally.
type Coordinator struct {
	mu     sync.Mutex
	policy *Policy

	retryCount       int
	maxRetries       int
	nextRetryAt      *time.Time
	exhausted        bool
	lastReason       string
	lastErrorCode    string
	lastErrorMessage string
	history          []AttemptRecord
}

// NewCoordinator wires a Coordinator over a Policy.
func NewCoordinator(policy *Policy) (*Coordinator, error) {
	if policy == nil {
		return nil, fmt.Errorf("%w: policy dependency is nil", ErrInvalidCoordinatorSetup)
	}
	return &Coordinator{policy: policy, maxRetries: DefaultMaxRetries}, nil
}

// ScheduleOption adjusts a single ScheduleRetry call.
type ScheduleOption func(*scheduleSettings)

type scheduleSettings struct {
	maxRetries int
}

// WithMaxRetries overrides the lineage's retry budget.
func WithMaxRetries(maxRetries int) ScheduleOption {
	return func(settings *scheduleSettings) {
		if maxRetries > 0 {
			settings.maxRetries = maxRetries
		}
	}
}

// ScheduleRetry records the decision to retry: it increments the
// count, marks the lineage exhausted once the budget is exceeded
// (clearing the next-retry time), and otherwise computes the next
// retry time from the policy. Calling it on an exhausted lineage
// returns ErrRetryExhausted.
func (coordinator *Coordinator) ScheduleRetry(reason string, options ...ScheduleOption) (Schedule, error) {
	settings := scheduleSettings{}
	for _, option := range options {
		if option != nil {
			option(&settings)
		}
	}

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if coordinator.exhausted {
		return Schedule{}, fmt.Errorf("%w: %d of %d retries used", ErrRetryExhausted, coordinator.retryCount, coordinator.maxRetries)
	}
	if settings.maxRetries > 0 {
		coordinator.maxRetries = settings.maxRetries
	}

	coordinator.retryCount++
	coordinator.lastReason = reason
	if coordinator.retryCount > coordinator.maxRetries {
		coordinator.exhausted = true
		coordinator.nextRetryAt = nil
		return Schedule{RetryCount: coordinator.retryCount, Exhausted: true}, nil
	}

	nextRetryAt := coordinator.policy.NextRetryTime(coordinator.retryCount)
	coordinator.nextRetryAt = &nextRetryAt
	return Schedule{
		Scheduled:   true,
		RetryCount:  coordinator.retryCount,
		NextRetryAt: nextRetryAt,
	}, nil
}

// RecordRetryAttempt appends the attempt outcome to the history. A
// success clears the pending retry time and last-error fields; a
// failure stores the code and message for the next schedule decision.
func (coordinator *Coordinator) RecordRetryAttempt(success bool, errorCode string, errorMessage string) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	coordinator.history = append(coordinator.history, AttemptRecord{
		AttemptedUnixUTC: coordinator.policy.nowFn().UTC().Unix(),
		Success:          success,
		ErrorCode:        errorCode,
		ErrorMessage:     errorMessage,
	})
	if success {
		coordinator.nextRetryAt = nil
		coordinator.lastErrorCode = ""
		coordinator.lastErrorMessage = ""
		return
	}
	coordinator.lastErrorCode = errorCode
	coordinator.lastErrorMessage = errorMessage
}

// ShouldRetry reports whether another attempt is permitted: false for
// a lineage that was never scheduled or is exhausted, otherwise the
// policy decision over the stored count and last error code.
func (coordinator *Coordinator) ShouldRetry() bool {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if coordinator.retryCount == 0 || coordinator.exhausted {
		return false
	}
	return coordinator.policy.ShouldRetry(coordinator.retryCount, coordinator.lastErrorCode)
}

// State returns a snapshot of the lineage; mutating the snapshot does
// not affect the coordinator.
func (coordinator *Coordinator) State() RetryState {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	state := RetryState{
		RetryCount:       coordinator.retryCount,
		MaxRetries:       coordinator.maxRetries,
		RetryExhausted:   coordinator.exhausted,
		LastReason:       coordinator.lastReason,
		LastErrorCode:    coordinator.lastErrorCode,
		LastErrorMessage: coordinator.lastErrorMessage,
		History:          append([]AttemptRecord(nil), coordinator.history...),
	}
	if coordinator.nextRetryAt != nil {
		nextRetryAt := *coordinator.nextRetryAt
		state.NextRetryAt = &nextRetryAt
	}
	return state
}
