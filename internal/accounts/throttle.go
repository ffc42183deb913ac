package accounts

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Throttle paces authentication attempts per username using a token bucket
type Throttle struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewThrottle creates a per-username throttle.
// r is attempts per second, burst is how many attempts may happen back to back.
func NewThrottle(r rate.Limit, burst int) *Throttle {
	return &Throttle{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

func (t *Throttle) limiter(username string) *rate.Limiter {
	t.mu.RLock()
	l, ok := t.limiters[username]
	t.mu.RUnlock()
	if ok {
		return l
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if l, ok = t.limiters[username]; ok {
		return l
	}
	l = rate.NewLimiter(t.rate, t.burst)
	t.limiters[username] = l
	return l
}

// allow reports whether an attempt for username may proceed now
func (t *Throttle) allow(username string) bool {
	return t.limiter(username).Allow()
}

// Wait blocks until an attempt for username may proceed or ctx is done
func (t *Throttle) Wait(ctx context.Context, username string) error {
	return t.limiter(username).Wait(ctx)
}
