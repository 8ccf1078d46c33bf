package generate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState is the health verdict a CircuitBreaker holds for a provider.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

var circuitStateNames = [...]string{
	CircuitClosed:   "closed",
	CircuitOpen:     "open",
	CircuitHalfOpen: "half-open",
}

func (s CircuitState) String() string {
	if s < 0 || int(s) >= len(circuitStateNames) {
		return "unknown"
	}
	return circuitStateNames[s]
}

// CircuitBreakerConfig sets when a provider is taken out of rotation and
// when it is tried again.
type CircuitBreakerConfig struct {
	// FailureThreshold transient failures inside FailureWindow open the circuit.
	FailureThreshold int
	// SuccessThreshold consecutive probe successes close it again.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before a probe.
	Timeout       time.Duration
	FailureWindow time.Duration
}

// DefaultCircuitBreakerConfig matches the ai.circuit defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		FailureWindow:    time.Minute,
	}
}

// CircuitBreaker short-circuits generation calls while a provider keeps
// failing with transient errors. Permanent errors such as a bad key or a
// refused prompt do not count against the provider.
type CircuitBreaker struct {
	provider string
	cfg      CircuitBreakerConfig
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    CircuitState
	openedAt time.Time
	recent   []time.Time // transient failures, oldest first
	probes   int         // successes while half-open
}

// NewCircuitBreaker returns a closed breaker for the named provider.
func NewCircuitBreaker(provider string, cfg CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{provider: provider, cfg: cfg, logger: logger, now: time.Now}
}

// Execute calls fn when the circuit admits it and feeds the outcome back.
// While open it returns ErrCircuitOpen without calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn callFunc) (string, error) {
	if !cb.admit() {
		return "", ErrCircuitOpen
	}
	out, err := fn(ctx)
	cb.observe(err)
	return out, err
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return true
	}
	if cb.now().Sub(cb.openedAt) < cb.cfg.Timeout {
		return false
	}
	cb.moveTo(CircuitHalfOpen)
	return true
}

func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err == nil:
		cb.onSuccess()
	case shouldRetry(err):
		cb.onFailure(cb.now())
	}
}

func (cb *CircuitBreaker) onSuccess() {
	if cb.state == CircuitHalfOpen {
		cb.probes++
		if cb.probes >= cb.cfg.SuccessThreshold {
			cb.moveTo(CircuitClosed)
		}
		return
	}
	cb.recent = cb.recent[:0]
}

func (cb *CircuitBreaker) onFailure(at time.Time) {
	if cb.state == CircuitHalfOpen {
		cb.moveTo(CircuitOpen)
		return
	}

	cutoff := at.Add(-cb.cfg.FailureWindow)
	drop := 0
	for drop < len(cb.recent) && !cb.recent[drop].After(cutoff) {
		drop++
	}
	cb.recent = append(cb.recent[drop:], at)

	if len(cb.recent) >= cb.cfg.FailureThreshold {
		cb.moveTo(CircuitOpen)
	}
}

// moveTo must be called with mu held.
func (cb *CircuitBreaker) moveTo(next CircuitState) {
	prev := cb.state
	if prev == next {
		return
	}
	cb.state = next
	cb.probes = 0
	switch next {
	case CircuitOpen:
		cb.openedAt = cb.now()
	case CircuitClosed:
		cb.recent = nil
	}
	cb.logger.Info("circuit state changed",
		zap.String("provider", cb.provider),
		zap.Stringer("from", prev),
		zap.Stringer("to", next))
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit and forgets recorded failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.recent = nil
	cb.probes = 0
}
