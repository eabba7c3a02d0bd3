// Package ratelimit provides the process-wide, per-external-API token
// bucket the Sync Engine threads through its client constructors (§9:
// "encapsulate behind a context object threaded through component
// constructors, not as hidden singletons").
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Registry hands out one token-bucket Limiter per named external API
// (e.g. "notion", "anki"), created lazily and shared by all callers.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	defaults map[string]float64
}

// NewRegistry builds a Registry. defaultRPS maps API names to requests
// per second; a name missing from it, or mapped to zero or less, gets 3.
func NewRegistry(defaultRPS map[string]float64) *Registry {
	return &Registry{
		limiters: make(map[string]*rate.Limiter),
		defaults: defaultRPS,
	}
}

// Limiter returns the shared limiter for api, creating it on first use.
// Burst is fixed at 1: the bucket refills at rps and every call consumes
// exactly one token, matching "3 req/s for Notion" (§4.B) literally.
func (r *Registry) Limiter(api string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[api]; ok {
		return l
	}

	rps := r.defaults[api]
	if rps <= 0 {
		rps = 3
	}
	l := rate.NewLimiter(rate.Limit(rps), 1)
	r.limiters[api] = l
	return l
}

// Wait blocks until a token for api is available or ctx is cancelled.
func (r *Registry) Wait(ctx context.Context, api string) error {
	return r.Limiter(api).Wait(ctx)
}
