package rate

import (
	"math"
	"sync"
	"time"
)

// entry is one fixed-window slot for a subject key.
type entry struct {
	count       int64
	windowStart time.Time
	// violations counts blocked hits across window boundaries. Diagnostic
	// only; it never resets and never influences blocking.
	violations int64
}

// counter is a fixed-window request counter keyed by subject. Expired
// entries are reaped lazily on the access path; there is no background
// sweep. All mutation happens under mu so check-and-increment is atomic.
type counter struct {
	mu       sync.Mutex
	window   time.Duration
	limit    int64
	burst    int64 // 0 = no burst tier
	entries  map[string]*entry
	lastReap time.Time
	now      func() time.Time
}

func newCounter(limit int64, window time.Duration, burst int64) *counter {
	return &counter{
		window:  window,
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// hit performs an atomic check-and-increment for key. A blocked hit records
// a violation and does NOT consume budget.
func (c *counter) hit(key string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{windowStart: now}
		c.entries[key] = e
	} else if !now.Before(e.windowStart.Add(c.window)) {
		// Window elapsed: reset the count, keep the violation counter.
		e.count = 0
		e.windowStart = now
	}

	// Reap after the in-place reset so the key being checked keeps its
	// violation diagnostics across window boundaries.
	c.reap(now)

	ceiling := c.limit
	if c.burst > 0 {
		// Two-tier grace: between limit and burst requests still pass,
		// only exceeding the burst ceiling blocks.
		ceiling = c.burst
	}

	resetAt := e.windowStart.Add(c.window)
	if e.count >= ceiling {
		e.violations++
		secs := int64(math.Ceil(resetAt.Sub(now).Seconds()))
		if secs < 1 {
			secs = 1
		}
		return Result{
			Allowed:    false,
			Remaining:  0,
			Limit:      c.limit,
			ResetAt:    resetAt,
			RetryAfter: time.Duration(secs) * time.Second,
		}
	}

	e.count++
	remaining := c.limit - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Remaining: remaining,
		Limit:     c.limit,
		ResetAt:   resetAt,
	}
}

// reap drops entries whose window has fully elapsed. Runs at most once per
// window so the cost stays amortized across hits.
func (c *counter) reap(now time.Time) {
	if now.Sub(c.lastReap) < c.window {
		return
	}
	c.lastReap = now
	for k, e := range c.entries {
		if !now.Before(e.windowStart.Add(c.window)) {
			delete(c.entries, k)
		}
	}
}

// violations returns the diagnostic violation count for key.
func (c *counter) violationsFor(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.violations
	}
	return 0
}
