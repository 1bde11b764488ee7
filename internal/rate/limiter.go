// Package rate implements the gateway's local rate limiting: fixed-window
// counters composed into per-policy limiters, plus the business-level tier
// quota check. Counters are process-local; a redis-backed limiter with the
// same contract exists for multi-instance deployments.
package rate

import (
	"context"
	"time"
)

// Policy names one independent rate-limit budget.
type Policy string

const (
	// PolicyProviderAPI guards the upstream API budget per installation.
	PolicyProviderAPI Policy = "provider_api"
	// PolicyWebhook guards against webhook floods per source address.
	PolicyWebhook Policy = "webhook"
	// PolicyOAuth guards against OAuth abuse per source address.
	PolicyOAuth Policy = "oauth"
)

// Result is the outcome of a limiter check.
type Result struct {
	Allowed    bool
	Remaining  int64
	Limit      int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the wait in whole seconds for Retry-After
// headers. Zero when the check passed.
func (r Result) RetryAfterSeconds() int {
	return int(r.RetryAfter / time.Second)
}

// Checker is the limiter contract shared by the in-memory and redis
// implementations.
type Checker interface {
	Check(ctx context.Context, policy Policy, key string) (Result, error)
}

// Config declares the per-policy windows and limits. Zero values fall back
// to the defaults below.
type Config struct {
	ProviderHourLimit   int64
	ProviderMinuteLimit int64
	WebhookPerSecond    int64
	WebhookBurst        int64
	OAuthPerMinute      int64
}

func (c Config) withDefaults() Config {
	if c.ProviderHourLimit == 0 {
		c.ProviderHourLimit = 5000
	}
	if c.ProviderMinuteLimit == 0 {
		c.ProviderMinuteLimit = 100
	}
	if c.WebhookPerSecond == 0 {
		c.WebhookPerSecond = 10
	}
	if c.WebhookBurst == 0 {
		c.WebhookBurst = 50
	}
	if c.OAuthPerMinute == 0 {
		c.OAuthPerMinute = 20
	}
	return c
}

// Limiter composes fixed-window counters into the three gateway policies.
// The provider policy keeps an hourly and a per-minute window and both must
// pass; the webhook policy carries a burst ceiling above the primary limit.
type Limiter struct {
	counters map[Policy][]*counter
}

// NewLimiter builds an in-memory limiter from cfg.
func NewLimiter(cfg Config) *Limiter {
	cfg = cfg.withDefaults()
	return &Limiter{
		counters: map[Policy][]*counter{
			PolicyProviderAPI: {
				newCounter(cfg.ProviderHourLimit, time.Hour, 0),
				newCounter(cfg.ProviderMinuteLimit, time.Minute, 0),
			},
			PolicyWebhook: {
				newCounter(cfg.WebhookPerSecond, time.Second, cfg.WebhookBurst),
			},
			PolicyOAuth: {
				newCounter(cfg.OAuthPerMinute, time.Minute, 0),
			},
		},
	}
}

// Check consumes one unit of budget for key under policy. Blocked checks
// never throw: the error return exists only for the Checker contract and is
// always nil here.
func (l *Limiter) Check(_ context.Context, policy Policy, key string) (Result, error) {
	counters, ok := l.counters[policy]
	if !ok {
		// Unknown policy: allow. Policies are declared at construction,
		// so this only happens on programmer error.
		return Result{Allowed: true}, nil
	}
	var last Result
	for _, c := range counters {
		res := c.hit(key)
		if !res.Allowed {
			return res, nil
		}
		last = res
	}
	return last, nil
}

// Violations reports the diagnostic violation count for key under policy,
// summed across the policy's windows.
func (l *Limiter) Violations(policy Policy, key string) int64 {
	var total int64
	for _, c := range l.counters[policy] {
		total += c.violationsFor(key)
	}
	return total
}

// setClock rebinds the clock on every counter. Test hook.
func (l *Limiter) setClock(now func() time.Time) {
	for _, cs := range l.counters {
		for _, c := range cs {
			c.now = now
		}
	}
}
