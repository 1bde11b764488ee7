package webhook

import (
	"encoding/json"
	"net/http"
	"time"
)

// Header names used by the provider on every delivery.
const (
	HeaderEvent     = "X-GitHub-Event"
	HeaderDelivery  = "X-GitHub-Delivery"
	HeaderSignature = "X-Hub-Signature-256"
	HeaderHookID    = "X-GitHub-Hook-ID"
)

// Context is the per-delivery metadata, built from headers and enriched in
// place once the payload is parsed.
type Context struct {
	ID        string
	Event     string
	Delivery  string
	Signature string
	Timestamp time.Time

	// Backfilled from the payload body.
	Action             string
	InstallationID     int64
	RepositoryFullName string
}

// ParseContext builds a Context from request headers. The event-type and
// delivery-id headers are both required; without them there is nothing to
// dispatch, so the result is nil.
func ParseContext(h http.Header) *Context {
	event := h.Get(HeaderEvent)
	delivery := h.Get(HeaderDelivery)
	if event == "" || delivery == "" {
		return nil
	}
	return &Context{
		ID:        h.Get(HeaderHookID),
		Event:     event,
		Delivery:  delivery,
		Signature: h.Get(HeaderSignature),
		Timestamp: time.Now().UTC(),
	}
}

// payloadEnvelope is the subset of every webhook body the gateway cares
// about for routing and enrichment.
type payloadEnvelope struct {
	Action       string `json:"action"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Enrich backfills action, installation id and repository name from the raw
// payload. Unparseable bodies leave the context untouched and report false.
func (c *Context) Enrich(payload []byte) bool {
	var env payloadEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return false
	}
	c.Action = env.Action
	c.InstallationID = env.Installation.ID
	c.RepositoryFullName = env.Repository.FullName
	return true
}
