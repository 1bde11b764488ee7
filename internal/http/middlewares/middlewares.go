// Package middlewares carries the gateway's HTTP middleware chain pieces.
package middlewares

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hubgate/hubgate/internal/apperr"
	"github.com/hubgate/hubgate/internal/http/helpers"
	"github.com/hubgate/hubgate/internal/observability/logger"
)

// Middleware is the standard net/http middleware shape.
type Middleware func(next http.Handler) http.Handler

// ClientIP extracts the caller address, honoring X-Forwarded-For when a
// proxy sits in front.
func ClientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// RequestID assigns a correlation id to every request and scopes the
// logger with it.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := logger.ToContext(r.Context(), logger.With(logger.RequestID(id)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Recover converts panics into a 500 with the correlation id logged, never
// exposing internals to the caller.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic in request handler",
						logger.Method(r.Method), logger.Path(r.URL.Path))
					helpers.WriteError(w, apperr.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
