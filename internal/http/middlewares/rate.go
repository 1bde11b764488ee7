package middlewares

import (
	"net/http"

	"github.com/hubgate/hubgate/internal/apperr"
	"github.com/hubgate/hubgate/internal/http/helpers"
	"github.com/hubgate/hubgate/internal/metrics"
	"github.com/hubgate/hubgate/internal/observability/logger"
	"github.com/hubgate/hubgate/internal/rate"
)

// RateLimit enforces a limiter policy keyed by client address before the
// handler runs. Blocked requests get a 429 with a Retry-After header and
// never reach the handler.
func RateLimit(checker rate.Checker, policy rate.Policy) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)
			res, err := checker.Check(r.Context(), policy, key)
			if err != nil {
				// A broken limiter backend must not take the gateway down
				// with it. Log and let the request through.
				logger.From(r.Context()).Error("rate limiter check failed",
					logger.Policy(string(policy)), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				metrics.IncRateLimitBlock(string(policy))
				logger.From(r.Context()).Warn("request blocked by rate limiter",
					logger.Policy(string(policy)), logger.Path(r.URL.Path))
				helpers.WriteError(w, apperr.ErrRateLimited.WithRetryAfter(res.RetryAfterSeconds()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
