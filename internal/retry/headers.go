package retry

import (
	"net/http"
	"strconv"
	"time"
)

// Info carries the provider's authoritative rate-limit counters as reported
// in response headers.
type Info struct {
	Limit     int64
	Remaining int64
	Reset     time.Time
	Used      int64
	Resource  string
}

// ParseRateLimitHeaders extracts the provider's counters from h. Returns
// nil when the limit header is absent; not every endpoint reports them.
func ParseRateLimitHeaders(h http.Header) *Info {
	limitStr := h.Get("X-RateLimit-Limit")
	if limitStr == "" {
		return nil
	}
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil {
		return nil
	}

	info := &Info{
		Limit:    limit,
		Resource: h.Get("X-RateLimit-Resource"),
	}
	if v, err := strconv.ParseInt(h.Get("X-RateLimit-Remaining"), 10, 64); err == nil {
		info.Remaining = v
	}
	if v, err := strconv.ParseInt(h.Get("X-RateLimit-Used"), 10, 64); err == nil {
		info.Used = v
	}
	if v, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		info.Reset = time.Unix(v, 0).UTC()
	}
	return info
}

// ShouldRetry decides whether a provider-limited call is worth retrying.
// With budget remaining the answer is always an immediate retry; otherwise
// the wait runs until the authoritative reset time and the call is retried
// only when that wait fits the caller's tolerance.
func ShouldRetry(info *Info, maxWait time.Duration) (bool, time.Duration) {
	if info == nil {
		return false, 0
	}
	if info.Remaining > 0 {
		return true, 0
	}
	wait := time.Until(info.Reset)
	if wait < 0 {
		wait = 0
	}
	if wait > maxWait {
		return false, wait
	}
	return true, wait
}
