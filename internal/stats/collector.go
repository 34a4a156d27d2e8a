// Package stats aggregates read-only operational figures from the cache
// store and the rate limiters for the admin and dashboard surfaces. The
// collector never mutates the components it observes.
package stats

import (
	"time"

	"github.com/ferro-labs/ai-shield/internal/cache"
	"github.com/ferro-labs/ai-shield/internal/ratelimit"
)

// Snapshot is a point-in-time view over the gateway's shared state.
type Snapshot struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Cache       cache.Stats                `json:"cache"`
	RateLimits  map[string]ratelimit.Stats `json:"rate_limits"`
}

// Collector derives snapshots on demand.
type Collector struct {
	store    *cache.Store
	limiters map[string]*ratelimit.Limiter
}

// New creates a Collector over the given store and named limiter instances.
func New(store *cache.Store, limiters map[string]*ratelimit.Limiter) *Collector {
	return &Collector{store: store, limiters: limiters}
}

// Snapshot gathers current figures from every observed component.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		GeneratedAt: time.Now(),
		RateLimits:  make(map[string]ratelimit.Stats, len(c.limiters)),
	}
	if c.store != nil {
		snap.Cache = c.store.Stats()
	}
	for class, l := range c.limiters {
		snap.RateLimits[class] = l.Stats()
	}
	return snap
}
