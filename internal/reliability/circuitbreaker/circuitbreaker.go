package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrOpen is returned by Execute while the breaker is rejecting calls
var ErrOpen = errors.New("circuit breaker open")

// State represents the circuit breaker state
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast once a dependency has failed failureThreshold
// times in a row, and probes it again after timeout.
type CircuitBreaker struct {
	state            atomic.Int32
	failureCount     atomic.Int32
	successCount     atomic.Int32
	openedAt         atomic.Int64 // unix nanos
	failureThreshold int32
	successThreshold int32
	timeout          time.Duration
	now              func() time.Time

	mu            sync.RWMutex
	onStateChange func(from, to State)
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(failureThreshold, successThreshold int32, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: max(failureThreshold, 1),
		successThreshold: max(successThreshold, 1),
		timeout:          timeout,
		now:              time.Now,
	}
}

// SetStateChangeCallback registers a callback for state transitions
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Execute runs fn when the breaker allows it and records the outcome
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.AllowRequest() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// RecordSuccess closes a half-open breaker after enough consecutive successes
func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.State() {
	case StateHalfOpen:
		if cb.successCount.Add(1) >= cb.successThreshold {
			cb.transition(StateClosed)
		}
	case StateClosed:
		cb.failureCount.Store(0)
	}
}

// RecordFailure trips a closed breaker at the threshold and reopens a half-open one
func (cb *CircuitBreaker) RecordFailure() {
	switch cb.State() {
	case StateClosed:
		if cb.failureCount.Add(1) >= cb.failureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// AllowRequest reports whether a call may go through. An open breaker turns
// half-open once timeout has passed since it opened.
func (cb *CircuitBreaker) AllowRequest() bool {
	if cb.State() != StateOpen {
		return true
	}
	opened := time.Unix(0, cb.openedAt.Load())
	if cb.now().Sub(opened) >= cb.timeout {
		cb.transition(StateHalfOpen)
		return true
	}
	return false
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

func (cb *CircuitBreaker) transition(to State) {
	from := State(cb.state.Swap(int32(to)))
	if from == to {
		return
	}
	cb.failureCount.Store(0)
	cb.successCount.Store(0)
	if to == StateOpen {
		cb.openedAt.Store(cb.now().UnixNano())
	}

	cb.mu.RLock()
	fn := cb.onStateChange
	cb.mu.RUnlock()
	if fn != nil {
		fn(from, to)
	}
}
