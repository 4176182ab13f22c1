package cache

import (
	"errors"
	"sync"
	"time"

	"teamhub/backend/internal/logger"
)

type CircuitBreakerState int

const (
	CircuitBreakerClosed CircuitBreakerState = iota
	CircuitBreakerOpen
	CircuitBreakerHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitBreakerOpen:
		return "open"
	case CircuitBreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig is filled from config.CacheConfig in production.
type CircuitBreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	TrialCalls       int
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		TrialCalls:       3,
	}
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	def := DefaultCircuitBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	if c.TrialCalls <= 0 {
		c.TrialCalls = def.TrialCalls
	}
	return c
}

// CircuitBreaker keeps a failing Redis tier from adding latency to every
// cache call. While open, calls fail fast with ErrCircuitBreakerOpen; after
// the cooldown up to TrialCalls calls are let through, and that many
// consecutive successes close it again.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig
	now  func() time.Time

	mu             sync.Mutex
	state          CircuitBreakerState
	failures       int
	trialSuccesses int
	trialsInFlight int
	openedAt       time.Time
	rejected       int64
	trips          int64
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name: name,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
	}
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, ok := cb.acquire()
	if !ok {
		return ErrCircuitBreakerOpen
	}

	err := fn()
	cb.release(trial, err)
	return err
}

func (cb *CircuitBreaker) acquire() (trial bool, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitBreakerOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		cb.transition(CircuitBreakerHalfOpen)
	}

	switch cb.state {
	case CircuitBreakerClosed:
		return false, true
	case CircuitBreakerHalfOpen:
		if cb.trialSuccesses+cb.trialsInFlight < cb.cfg.TrialCalls {
			cb.trialsInFlight++
			return true, true
		}
	}
	cb.rejected++
	return false, false
}

func (cb *CircuitBreaker) release(trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trialsInFlight--
		// A sibling trial already reopened or closed the breaker.
		if cb.state != CircuitBreakerHalfOpen {
			return
		}
		if err != nil {
			cb.trip()
			return
		}
		cb.trialSuccesses++
		if cb.trialSuccesses >= cb.cfg.TrialCalls {
			cb.transition(CircuitBreakerClosed)
		}
		return
	}

	if cb.state != CircuitBreakerClosed {
		return
	}
	if err == nil {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.FailureThreshold {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.trips++
	cb.transition(CircuitBreakerOpen)
}

func (cb *CircuitBreaker) transition(to CircuitBreakerState) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.trialSuccesses = 0

	if to == CircuitBreakerOpen {
		logger.Warn("circuit breaker opened", "breaker", cb.name, "from", from.String(), "cooldown", cb.cfg.Cooldown)
	} else {
		logger.Info("circuit breaker state changed", "breaker", cb.name, "from", from.String(), "to", to.String())
	}
}

func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stats := map[string]interface{}{
		"name":              cb.name,
		"state":             cb.state.String(),
		"failures":          cb.failures,
		"failure_threshold": cb.cfg.FailureThreshold,
		"cooldown_seconds":  cb.cfg.Cooldown.Seconds(),
		"trial_calls":       cb.cfg.TrialCalls,
		"rejected":          cb.rejected,
		"trips":             cb.trips,
	}
	if !cb.openedAt.IsZero() {
		stats["last_opened"] = cb.openedAt.Unix()
	}
	return stats
}
