package rate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLimiter implements Checker on a shared redis backend (INCR + EXPIRE
// fixed window) so multiple gateway instances can share one budget.
// Violation diagnostics are not tracked here; the local limiter covers the
// single-instance case.
type RedisLimiter struct {
	client  *rdb.Client
	prefix  string
	windows map[Policy][]redisWindow
}

type redisWindow struct {
	limit  int64
	burst  int64
	window time.Duration
	suffix string
}

// NewRedisLimiter builds a redis-backed limiter with the same policy
// configuration as the in-memory one.
func NewRedisLimiter(client *rdb.Client, prefix string, cfg Config) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	cfg = cfg.withDefaults()
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		windows: map[Policy][]redisWindow{
			PolicyProviderAPI: {
				{limit: cfg.ProviderHourLimit, window: time.Hour, suffix: "1h"},
				{limit: cfg.ProviderMinuteLimit, window: time.Minute, suffix: "1m"},
			},
			PolicyWebhook: {
				{limit: cfg.WebhookPerSecond, burst: cfg.WebhookBurst, window: time.Second, suffix: "1s"},
			},
			PolicyOAuth: {
				{limit: cfg.OAuthPerMinute, window: time.Minute, suffix: "1m"},
			},
		},
	}
}

func (l *RedisLimiter) Check(ctx context.Context, policy Policy, key string) (Result, error) {
	var last Result
	for _, w := range l.windows[policy] {
		res, err := l.allow(ctx, policy, key, w)
		if err != nil {
			return Result{}, err
		}
		if !res.Allowed {
			return res, nil
		}
		last = res
	}
	return last, nil
}

func (l *RedisLimiter) allow(ctx context.Context, policy Policy, key string, w redisWindow) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(w.window)
	redisKey := fmt.Sprintf("%s%s:%s:%s:%d",
		l.prefix, policy, w.suffix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	// set expiry on first hit
	if incr.Val() == 1 {
		_ = l.client.Expire(ctx, redisKey, w.window).Err()
		ttl = l.client.TTL(ctx, redisKey)
	}

	hits := incr.Val()
	ceiling := w.limit
	if w.burst > 0 {
		ceiling = w.burst
	}
	allowed := hits <= ceiling
	if !allowed {
		// Blocked hits do not consume budget: give the increment back so
		// hammering a blocked key cannot stretch the block past the window,
		// same contract as the in-memory counter.
		_ = l.client.Decr(ctx, redisKey).Err()
	}
	remaining := w.limit - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   allowed,
		Remaining: remaining,
		Limit:     w.limit,
		ResetAt:   winStart.Add(w.window),
	}
	if !allowed {
		retry := ttl.Val()
		if retry <= 0 {
			retry = time.Duration(math.Ceil(w.window.Seconds())) * time.Second
		}
		secs := int64(math.Ceil(retry.Seconds()))
		if secs < 1 {
			secs = 1
		}
		res.RetryAfter = time.Duration(secs) * time.Second
	}
	return res, nil
}
