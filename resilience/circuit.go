package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is rejecting all requests.
	StateOpen
	// StateHalfOpen means the circuit is probing whether the backend recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the failure count that opens the circuit.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open after the last failure
	// before a probe is allowed.
	// Default: 60 seconds
	RecoveryTimeout time.Duration

	// SuccessThreshold is the number of consecutive probe successes that fully
	// recover the circuit. Each success lowers the failure count by
	// ceil(FailureThreshold/SuccessThreshold).
	// Default: 2
	SuccessThreshold int

	// HalfOpenMaxProbes is the number of probes allowed in flight at once
	// while half-open. Extra calls are rejected with ErrCircuitOpen.
	// Default: 1
	HalfOpenMaxProbes int

	// OnStateChange is called when the circuit state changes. It runs with the
	// breaker lock held and must not call back into the breaker.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: every non-nil error except context cancellation.
	IsFailure func(err error) bool
}

// CircuitBreaker implements the circuit breaker pattern for one backend.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	step   int

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probes      int

	now func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.HalfOpenMaxProbes <= 0 {
		config.HalfOpenMaxProbes = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = defaultIsFailure
	}

	step := (config.FailureThreshold + config.SuccessThreshold - 1) / config.SuccessThreshold

	return &CircuitBreaker{
		config: config,
		step:   step,
		state:  StateClosed,
		now:    time.Now,
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Execute runs the operation through the circuit breaker.
//
// When the circuit is open the operation is not invoked and ErrCircuitOpen is
// returned. An operation that fails because ctx was cancelled is not counted.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	probe, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	err = op(ctx)
	cb.afterRequest(ctx, probe, err)
	return err
}

// State returns the current circuit state. It never changes the state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the circuit closed and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.probes = 0
	cb.lastFailure = time.Time{}
	cb.setState(StateClosed)
}

func (cb *CircuitBreaker) beforeRequest() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) <= cb.config.RecoveryTimeout {
			return false, ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
	}

	if cb.state == StateHalfOpen {
		if cb.probes >= cb.config.HalfOpenMaxProbes {
			return false, ErrCircuitOpen
		}
		cb.probes++
		return true, nil
	}

	return false, nil
}

func (cb *CircuitBreaker) afterRequest(ctx context.Context, probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && cb.probes > 0 {
		cb.probes--
	}

	if err != nil && ctx.Err() != nil {
		// Abandoned by the caller; says nothing about the backend.
		return
	}

	if err != nil && cb.config.IsFailure(err) {
		cb.onFailure()
		return
	}
	cb.onSuccess()
}

func (cb *CircuitBreaker) onFailure() {
	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.failures = cb.config.FailureThreshold
		cb.setState(StateOpen)
	case StateOpen:
		// A probe admitted before a concurrent reopen; the timestamp refresh
		// above is all that is needed.
	}
}

func (cb *CircuitBreaker) onSuccess() {
	// A late success from a call admitted before the circuit opened must not
	// shorten the next half-open phase.
	if cb.state == StateOpen {
		return
	}
	cb.failures = max(0, cb.failures-cb.step)

	if cb.state == StateHalfOpen && cb.failures == 0 {
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}
	from := cb.state
	cb.state = state
	if state != StateHalfOpen {
		cb.probes = 0
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, state)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:          cb.state,
		Failures:       cb.failures,
		LastFailure:    cb.lastFailure,
		InFlightProbes: cb.probes,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State          State
	Failures       int
	LastFailure    time.Time
	InFlightProbes int
}
