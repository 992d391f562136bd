// Package health tracks per-network fill health and guards waterfall fetches
// with a circuit breaker.
package health

import (
	"sync"
	"time"
)

// Status is a snapshot of one network's health.
type Status struct {
	Healthy      bool      `json:"healthy"`
	FailureCount int       `json:"failure_count"`
	SuccessCount int       `json:"success_count"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
}

// Checker marks a network unhealthy after FailureThreshold consecutive
// failures and healthy again after SuccessThreshold consecutive successes.
// Unknown networks are healthy.
type Checker struct {
	failureThreshold int
	successThreshold int
	now              func() time.Time

	mu     sync.RWMutex
	status map[string]*Status
}

func NewChecker(failureThreshold, successThreshold int) *Checker {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	return &Checker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		now:              time.Now,
		status:           make(map[string]*Status),
	}
}

// Update records the outcome of one attempt against network id.
func (hc *Checker) Update(id string, success bool, err error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	status, exists := hc.status[id]
	if !exists {
		status = &Status{Healthy: true}
		hc.status[id] = status
	}
	status.LastCheck = hc.now()

	if success {
		status.SuccessCount++
		status.FailureCount = 0
		status.LastError = ""
		if status.SuccessCount >= hc.successThreshold {
			status.Healthy = true
		}
		return
	}

	status.FailureCount++
	status.SuccessCount = 0
	if err != nil {
		status.LastError = err.Error()
	}
	if status.FailureCount >= hc.failureThreshold {
		status.Healthy = false
	}
}

func (hc *Checker) IsHealthy(id string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status, exists := hc.status[id]
	if !exists {
		return true
	}
	return status.Healthy
}

// Status returns a copy of the status of id.
func (hc *Checker) Status(id string) Status {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status, exists := hc.status[id]
	if !exists {
		return Status{Healthy: true}
	}
	return *status
}

// All returns copies of every tracked status.
func (hc *Checker) All() map[string]Status {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := make(map[string]Status, len(hc.status))
	for id, status := range hc.status {
		result[id] = *status
	}
	return result
}

// CleanupStale forgets networks not updated within staleDuration, which
// makes them healthy again.
func (hc *Checker) CleanupStale(staleDuration time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	now := hc.now()
	for id, status := range hc.status {
		if now.Sub(status.LastCheck) > staleDuration {
			delete(hc.status, id)
		}
	}
}

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// BreakerConfig tunes a CircuitBreaker.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold" yaml:"success_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Cooldown:         60 * time.Second,
	}
}

// CircuitBreaker opens after FailureThreshold consecutive failures, lets
// requests probe again after Cooldown and closes after SuccessThreshold
// successful probes.
type CircuitBreaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu            sync.Mutex
	state         CircuitState
	failureCount  int
	successCount  int
	lastStateTime time.Time
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &CircuitBreaker{
		cfg:           cfg,
		now:           time.Now,
		state:         StateClosed,
		lastStateTime: time.Now(),
	}
}

// Allow reports whether a request may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastStateTime) > cb.cfg.Cooldown {
			cb.setStateLocked(StateHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.successCount++
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.setStateLocked(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		cb.successCount = 0
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.setStateLocked(StateOpen)
		}
	case StateHalfOpen:
		cb.setStateLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state CircuitState) {
	cb.state = state
	cb.lastStateTime = cb.now()
	cb.failureCount = 0
	cb.successCount = 0
}
