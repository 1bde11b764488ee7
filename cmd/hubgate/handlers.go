package main

import (
	"context"
	"encoding/json"

	"github.com/hubgate/hubgate/internal/audit"
	"github.com/hubgate/hubgate/internal/store"
	"github.com/hubgate/hubgate/internal/webhook"
)

// installationEvent is the slice of the installation payload the gateway
// persists.
type installationEvent struct {
	Installation struct {
		ID      int64 `json:"id"`
		Account struct {
			Login string `json:"login"`
			Type  string `json:"type"`
		} `json:"account"`
	} `json:"installation"`
}

// installationStatus maps provider actions onto the stored lifecycle state.
var installationStatus = map[string]string{
	"created":                  "active",
	"unsuspend":                "active",
	"new_permissions_accepted": "active",
	"suspend":                  "suspended",
	"deleted":                  "deleted",
}

// newDispatcher builds the delivery dispatcher with the gateway's built-in
// handlers: an audit trail for every delivery and installation lifecycle
// bookkeeping. Platform services register their own handlers on top.
func newDispatcher(db store.Store, rec audit.Recorder) *webhook.Dispatcher {
	d := webhook.NewDispatcher()

	d.Use(func(ctx context.Context, _ json.RawMessage, wc *webhook.Context) bool {
		rec.Record(ctx, "webhook.delivery", "received", map[string]any{
			"event":    wc.Event,
			"action":   wc.Action,
			"delivery": wc.Delivery,
		})
		return true
	})

	recordInstallation := func(ctx context.Context, payload json.RawMessage, wc *webhook.Context) error {
		var ev installationEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		status, ok := installationStatus[wc.Action]
		if !ok {
			return nil
		}
		return db.UpsertInstallation(ctx, ev.Installation.ID, store.Account{
			Login: ev.Installation.Account.Login,
			Type:  ev.Installation.Account.Type,
		}, status)
	}
	d.On("installation", webhook.ActionWildcard, "installation-recorder", recordInstallation)

	return d
}
