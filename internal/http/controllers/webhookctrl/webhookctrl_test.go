package webhookctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubgate/hubgate/internal/audit"
	"github.com/hubgate/hubgate/internal/rate"
	"github.com/hubgate/hubgate/internal/webhook"
)

var secret = []byte("s3cr3t")

func deliver(c *Controller, body []byte, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set(webhook.HeaderEvent, "issues")
	req.Header.Set(webhook.HeaderDelivery, "d-1")
	req.Header.Set(webhook.HeaderSignature, webhook.Sign(secret, body))
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	c.Receive(rec, req)
	return rec
}

func newController(d *webhook.Dispatcher) *Controller {
	return New(secret, d, rate.NewLimiter(rate.Config{}), audit.Nop{})
}

func TestReceive_Success(t *testing.T) {
	d := webhook.NewDispatcher()
	var seen *webhook.Context
	d.On("issues", "opened", "recorder", func(_ context.Context, _ json.RawMessage, wc *webhook.Context) error {
		seen = wc
		return nil
	})

	body := []byte(`{"action":"opened","installation":{"id":42},"repository":{"full_name":"octo/hello"}}`)
	rec := deliver(newController(d), body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(42), seen.InstallationID)

	var env struct {
		Success bool             `json:"success"`
		Event   string           `json:"event"`
		Results []webhook.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "issues", env.Event)
	require.Len(t, env.Results, 1)
	assert.Equal(t, "recorder", env.Results[0].Handler)
}

func TestReceive_PartialFailureIs207(t *testing.T) {
	d := webhook.NewDispatcher()
	d.On("issues", "opened", "ok", func(context.Context, json.RawMessage, *webhook.Context) error {
		return nil
	})
	d.On("issues", "opened", "bad", func(context.Context, json.RawMessage, *webhook.Context) error {
		return assert.AnError
	})

	body := []byte(`{"action":"opened"}`)
	rec := deliver(newController(d), body, nil)
	assert.Equal(t, http.StatusMultiStatus, rec.Code)
}

func TestReceive_InvalidSignatureIs401(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	rec := deliver(newController(webhook.NewDispatcher()), body, func(r *http.Request) {
		r.Header.Set(webhook.HeaderSignature, webhook.Sign([]byte("wrong"), body))
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReceive_UnparseableBodyIs400(t *testing.T) {
	d := webhook.NewDispatcher()
	handlerRan := false
	d.On("issues", webhook.ActionWildcard, "h", func(context.Context, json.RawMessage, *webhook.Context) error {
		handlerRan = true
		return nil
	})

	// Correctly signed, but the body is not JSON: rejected before dispatch.
	body := []byte("not json at all")
	rec := deliver(newController(d), body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, handlerRan, "an unparseable delivery must never reach handlers")
}

func TestReceive_MissingHeadersIs400(t *testing.T) {
	body := []byte(`{}`)
	rec := deliver(newController(webhook.NewDispatcher()), body, func(r *http.Request) {
		r.Header.Del(webhook.HeaderDelivery)
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceive_FloodIs429(t *testing.T) {
	c := newController(webhook.NewDispatcher())
	body := []byte(`{"action":"opened"}`)

	// The burst ceiling is 50 per source per second; hammering well past it
	// must produce a 429 with a Retry-After hint.
	var blocked *httptest.ResponseRecorder
	for i := 0; i < 120 && blocked == nil; i++ {
		if rec := deliver(c, body, nil); rec.Code == http.StatusTooManyRequests {
			blocked = rec
		}
	}
	require.NotNil(t, blocked, "flood was never rate limited")
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
}
