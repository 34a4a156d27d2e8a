// Package ratelimit provides a fixed-window per-client rate limiter used as
// the gateway's admission-control layer. Each protected operation class owns
// its own Limiter instance with an independent window configuration; a
// background sweep bounds memory under high client cardinality.
package ratelimit

import (
	"sort"
	"sync"
	"time"
)

// Config is the immutable configuration of one Limiter instance.
type Config struct {
	// Window is the fixed admission window (default 1m).
	Window time.Duration `json:"window" yaml:"window"`
	// MaxRequests is the number of requests admitted per window (default 60).
	MaxRequests int `json:"max_requests" yaml:"max_requests"`
	// Message is the human-readable denial message returned to callers.
	Message string `json:"message" yaml:"message"`
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the denial retry hint, rounded up to whole seconds.
	// Zero when the request was admitted.
	RetryAfter time.Duration
}

// ClientActivity describes one client's standing within its current window.
// ClientID is partially masked for privacy.
type ClientActivity struct {
	ClientID    string    `json:"client_id"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// Stats is a read-only snapshot of a Limiter's client population.
type Stats struct {
	TotalClients  int              `json:"total_clients"`
	ActiveClients int              `json:"active_clients"`
	TopClients    []ClientActivity `json:"top_clients"`
}

type clientWindow struct {
	count       int
	windowStart time.Time
	windowEnd   time.Time
}

// Limiter tracks per-client request counts within a rolling fixed window.
// Construct with New and release with Stop.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	clients map[string]*clientWindow

	stop chan struct{}
	done chan struct{}
}

// New creates a Limiter and starts its cleanup sweep, which runs on the same
// cadence as the window size.
func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 60
	}
	if cfg.Message == "" {
		cfg.Message = "too many requests, please retry later"
	}
	l := &Limiter{
		cfg:     cfg,
		clients: make(map[string]*clientWindow),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Config returns the limiter's immutable configuration.
func (l *Limiter) Config() Config { return l.cfg }

// Admit records one request from clientID and decides whether to admit it.
// It never fails: denial is an expected outcome, not an error.
func (l *Limiter) Admit(clientID string) Result {
	now := time.Now()

	l.mu.Lock()
	w, ok := l.clients[clientID]
	if !ok || !now.Before(w.windowEnd) {
		// First sight, or the window expired: reset atomically.
		w = &clientWindow{count: 1, windowStart: now, windowEnd: now.Add(l.cfg.Window)}
		l.clients[clientID] = w
	} else {
		w.count++
	}
	count := w.count
	resetAt := w.windowEnd
	l.mu.Unlock()

	res := Result{
		Allowed: count <= l.cfg.MaxRequests,
		Limit:   l.cfg.MaxRequests,
		ResetAt: resetAt,
	}
	if remaining := l.cfg.MaxRequests - count; remaining > 0 {
		res.Remaining = remaining
	}
	if !res.Allowed {
		res.RetryAfter = ceilSeconds(resetAt.Sub(now))
	}
	return res
}

// Stats returns the total and active client counts plus the ten most active
// clients of the current windows, with masked identifiers.
func (l *Limiter) Stats() Stats {
	now := time.Now()

	l.mu.Lock()
	st := Stats{TotalClients: len(l.clients)}
	active := make([]ClientActivity, 0, len(l.clients))
	for id, w := range l.clients {
		if now.Before(w.windowEnd) {
			active = append(active, ClientActivity{
				ClientID:    MaskClientID(id),
				Count:       w.count,
				WindowStart: w.windowStart,
			})
		}
	}
	l.mu.Unlock()

	st.ActiveClients = len(active)
	sort.Slice(active, func(i, j int) bool { return active[i].Count > active[j].Count })
	if len(active) > 10 {
		active = active[:10]
	}
	st.TopClients = active
	return st
}

// Stop terminates the cleanup sweep. The limiter remains usable afterwards
// but no longer reclaims idle client windows.
func (l *Limiter) Stop() {
	close(l.stop)
	<-l.done
}

// sweepLoop removes client windows that have been expired for a full window
// duration with no further requests.
func (l *Limiter) sweepLoop() {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep() {
	cutoff := time.Now().Add(-l.cfg.Window)

	l.mu.Lock()
	for id, w := range l.clients {
		if w.windowEnd.Before(cutoff) {
			delete(l.clients, id)
		}
	}
	l.mu.Unlock()
}

// MaskClientID partially masks a client identifier for log and stats output.
func MaskClientID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return id + "****"
}

func ceilSeconds(d time.Duration) time.Duration {
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
