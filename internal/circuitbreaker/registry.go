package circuitbreaker

import (
	"sync"
	"time"
)

// Registry holds one breaker per upstream service, created lazily with a
// shared configuration.
type Registry struct {
	mu               sync.Mutex
	breakers         map[string]*CircuitBreaker
	failureThreshold int
	successThreshold int
	timeout          time.Duration
}

// NewRegistry creates a Registry whose breakers use the given thresholds and
// open timeout. Zero values fall back to the CircuitBreaker defaults.
func NewRegistry(failureThreshold, successThreshold int, timeout time.Duration) *Registry {
	return &Registry{
		breakers:         make(map[string]*CircuitBreaker),
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
	}
}

// For returns the breaker guarding the named upstream, creating it on first
// use.
func (r *Registry) For(upstream string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[upstream]
	if !ok {
		cb = New(r.failureThreshold, r.successThreshold, r.timeout)
		r.breakers[upstream] = cb
	}
	return cb
}

// States reports the current state of every known breaker, keyed by upstream
// name.
func (r *Registry) States() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make(map[string]string, len(r.breakers))
	for name, cb := range r.breakers {
		states[name] = cb.State().String()
	}
	return states
}
