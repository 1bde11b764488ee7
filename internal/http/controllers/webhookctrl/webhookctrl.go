// Package webhookctrl is the HTTP entry point for provider deliveries:
// signature check, header validation, flood limiting and dispatch, with a
// per-handler result envelope in the response.
package webhookctrl

import (
	"io"
	"net/http"
	"time"

	"github.com/hubgate/hubgate/internal/apperr"
	"github.com/hubgate/hubgate/internal/audit"
	"github.com/hubgate/hubgate/internal/http/helpers"
	"github.com/hubgate/hubgate/internal/http/middlewares"
	"github.com/hubgate/hubgate/internal/metrics"
	"github.com/hubgate/hubgate/internal/observability/logger"
	"github.com/hubgate/hubgate/internal/rate"
	"github.com/hubgate/hubgate/internal/webhook"
)

// maxBodyBytes caps delivery payloads. GitHub's own ceiling is 25 MB.
const maxBodyBytes = 25 << 20

type Controller struct {
	secret     []byte
	dispatcher *webhook.Dispatcher
	limiter    rate.Checker
	audit      audit.Recorder
}

func New(secret []byte, d *webhook.Dispatcher, limiter rate.Checker, rec audit.Recorder) *Controller {
	return &Controller{secret: secret, dispatcher: d, limiter: limiter, audit: rec}
}

// envelope is the delivery response body. ProcessingTimeMs covers dispatch
// only, not transport.
type envelope struct {
	Success          bool             `json:"success"`
	RequestID        string           `json:"requestId"`
	Delivery         string           `json:"delivery,omitempty"`
	Event            string           `json:"event,omitempty"`
	Results          []webhook.Result `json:"results"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
}

// Receive handles POST deliveries. 401 on bad signature, 400 on missing
// routing headers, 429 on flood, 200/207 depending on handler outcomes.
func (c *Controller) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		helpers.WriteError(w, apperr.ErrBadRequest.WithDetail("unreadable body").WithCause(err))
		return
	}

	verdict := webhook.VerifySignature(c.secret, body, r.Header.Get(webhook.HeaderSignature))
	if !verdict.Valid {
		log.Warn("webhook signature rejected",
			logger.Delivery(r.Header.Get(webhook.HeaderDelivery)),
			logger.Detail(verdict.Reason))
		c.audit.Record(ctx, "webhook.rejected", "invalid_signature", map[string]any{
			"reason": verdict.Reason,
		})
		metrics.ObserveWebhook(r.Header.Get(webhook.HeaderEvent), "invalid_signature", 0)
		helpers.WriteError(w, apperr.ErrInvalidSignature)
		return
	}
	if verdict.Reason == webhook.ReasonNoSecret {
		log.Warn("webhook signature verification bypassed, no secret configured")
	}

	wc := webhook.ParseContext(r.Header)
	if wc == nil {
		helpers.WriteError(w, apperr.ErrMissingHeaders)
		return
	}
	if !wc.Enrich(body) {
		metrics.ObserveWebhook(wc.Event, "bad_payload", 0)
		helpers.WriteError(w, apperr.ErrBadRequest.WithDetail("payload is not valid JSON"))
		return
	}

	res, cerr := c.limiter.Check(ctx, rate.PolicyWebhook, middlewares.ClientIP(r))
	if cerr != nil {
		log.Error("webhook flood limiter failed", logger.Err(cerr))
	} else if !res.Allowed {
		metrics.IncRateLimitBlock(string(rate.PolicyWebhook))
		metrics.ObserveWebhook(wc.Event, "rate_limited", 0)
		helpers.WriteError(w, apperr.ErrRateLimited.WithRetryAfter(res.RetryAfterSeconds()))
		return
	}

	started := time.Now()
	results := c.dispatcher.Process(ctx, body, wc)
	elapsed := time.Since(started)

	success := true
	for _, r := range results {
		if !r.Success {
			success = false
			break
		}
	}

	outcome := "ok"
	status := http.StatusOK
	if !success {
		outcome = "partial_failure"
		status = http.StatusMultiStatus
	}
	metrics.ObserveWebhook(wc.Event, outcome, elapsed)
	log.Info("webhook delivery processed",
		logger.Event(wc.Event), logger.Action(wc.Action),
		logger.Delivery(wc.Delivery), logger.InstallationID(wc.InstallationID),
		logger.Duration(elapsed))

	helpers.WriteJSON(w, status, envelope{
		Success:          success,
		RequestID:        w.Header().Get("X-Request-ID"),
		Delivery:         wc.Delivery,
		Event:            wc.Event,
		Results:          results,
		ProcessingTimeMs: elapsed.Milliseconds(),
	})
}
