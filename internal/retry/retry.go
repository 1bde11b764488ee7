// Package retry wraps provider-bound operations with the local rate-limit
// pre-check and a reactive backoff driven by the provider's own responses.
//
// Two layers exist on purpose: the local counters only approximate the
// shared quota (other consumers drain it invisibly), so the provider's
// rate-limit signal stays authoritative and gets its own backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/hubgate/hubgate/internal/apperr"
	"github.com/hubgate/hubgate/internal/observability/logger"
	"github.com/hubgate/hubgate/internal/rate"
)

const (
	backoffBase = time.Second
	backoffCap  = 30 * time.Second
)

// Operation is one provider-bound call.
type Operation func(ctx context.Context) error

// Wrapper binds a limiter policy to retry bookkeeping.
type Wrapper struct {
	Limiter rate.Checker
	Policy  rate.Policy

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewWrapper(limiter rate.Checker, policy rate.Policy) *Wrapper {
	return &Wrapper{Limiter: limiter, Policy: policy, sleep: sleepCtx}
}

// WithRateLimit runs op with at most maxRetries retries. Each attempt is
// preceded by a local limiter check; a blocked check waits the window's
// RetryAfter. When op itself reports an upstream rate-limit error, an
// independent exponential backoff applies (1s base, doubling, 30s cap).
func (w *Wrapper) WithRateLimit(ctx context.Context, key string, maxRetries int, op Operation) error {
	backoff := backoffBase
	for attempt := 0; ; attempt++ {
		res, err := w.Limiter.Check(ctx, w.Policy, key)
		if err != nil {
			// A broken limiter backend must not take the gateway down
			// with it; the provider-side backoff still protects us.
			logger.From(ctx).Warn("rate limiter check failed", logger.Err(err))
			res = rate.Result{Allowed: true}
		}
		if !res.Allowed {
			if attempt >= maxRetries {
				return apperr.ErrRateLimited.
					WithDetail(fmt.Sprintf("local budget exhausted, retry in %ds", res.RetryAfterSeconds())).
					WithRetryAfter(res.RetryAfterSeconds())
			}
			if err := w.sleep(ctx, res.RetryAfter); err != nil {
				return err
			}
			continue
		}

		opErr := op(ctx)
		if opErr == nil {
			return nil
		}
		if !apperr.IsProviderRateLimit(opErr) || attempt >= maxRetries {
			return opErr
		}

		logger.From(ctx).Warn("provider rate limit hit, backing off",
			logger.Policy(string(w.Policy)), logger.Subject(key),
			logger.Duration(backoff))
		if err := w.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
