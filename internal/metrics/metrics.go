// Package metrics exposes the gateway's prometheus instrumentation. The
// increment helpers are nil-safe so packages can report unconditionally;
// before Register runs (tests, CLI paths) they are no-ops.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	webhookDeliveries *prometheus.CounterVec
	webhookDuration   *prometheus.HistogramVec
	rateLimitBlocks   *prometheus.CounterVec
	tokenRequests     *prometheus.CounterVec
	oauthLogins       *prometheus.CounterVec
)

// Register initializes the collectors on the given registerer (nil means
// the default) and returns the /metrics handler. Idempotent.
func Register(reg prometheus.Registerer) http.Handler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	once.Do(func() {
		webhookDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubgate_webhook_deliveries_total",
			Help: "Webhook deliveries processed, by event and outcome",
		}, []string{"event", "outcome"})

		webhookDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hubgate_webhook_duration_seconds",
			Help:    "Webhook dispatch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"event"})

		rateLimitBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubgate_rate_limit_blocks_total",
			Help: "Requests blocked by the local rate limiter, by policy",
		}, []string{"policy"})

		tokenRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubgate_installation_token_requests_total",
			Help: "Installation token fetches, by source (cache_hit | mint)",
		}, []string{"source"})

		oauthLogins = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubgate_oauth_logins_total",
			Help: "OAuth callback completions, by outcome",
		}, []string{"outcome"})

		reg.MustRegister(webhookDeliveries, webhookDuration,
			rateLimitBlocks, tokenRequests, oauthLogins)
	})

	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func ObserveWebhook(event, outcome string, d time.Duration) {
	if webhookDeliveries != nil {
		webhookDeliveries.WithLabelValues(event, outcome).Inc()
	}
	if webhookDuration != nil {
		webhookDuration.WithLabelValues(event).Observe(d.Seconds())
	}
}

func IncRateLimitBlock(policy string) {
	if rateLimitBlocks != nil {
		rateLimitBlocks.WithLabelValues(policy).Inc()
	}
}

func IncTokenRequest(source string) {
	if tokenRequests != nil {
		tokenRequests.WithLabelValues(source).Inc()
	}
}

func IncOAuthLogin(outcome string) {
	if oauthLogins != nil {
		oauthLogins.WithLabelValues(outcome).Inc()
	}
}
