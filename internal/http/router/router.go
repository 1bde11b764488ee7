// Package router wires the gateway's HTTP surface.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hubgate/hubgate/internal/http/controllers/health"
	"github.com/hubgate/hubgate/internal/http/controllers/oauthctrl"
	"github.com/hubgate/hubgate/internal/http/controllers/webhookctrl"
	"github.com/hubgate/hubgate/internal/http/middlewares"
	"github.com/hubgate/hubgate/internal/rate"
)

// Deps carries everything the routes need.
type Deps struct {
	OAuth   *oauthctrl.Controller
	Webhook *webhookctrl.Controller
	Health  *health.Controller
	Limiter rate.Checker
	Metrics http.Handler
}

// New builds the gateway router. The webhook route does its own flood
// limiting inside the controller so the 429 can carry delivery context.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middlewares.RequestID())
	r.Use(middlewares.Recover())
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Post("/webhooks/github", d.Webhook.Receive)

	r.Route("/auth/github", func(r chi.Router) {
		r.Use(middlewares.RateLimit(d.Limiter, rate.PolicyOAuth))
		r.Get("/login", d.OAuth.Initiate)
		r.Get("/callback", d.OAuth.Callback)
	})
	r.Get("/auth/session", d.OAuth.Session)
	r.Post("/auth/logout", d.OAuth.Logout)

	return r
}
