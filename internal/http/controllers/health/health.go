// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/hubgate/hubgate/internal/http/helpers"
)

// Pinger checks one downstream dependency.
type Pinger func(ctx context.Context) error

type Controller struct {
	pingers map[string]Pinger
}

func New(pingers map[string]Pinger) *Controller {
	return &Controller{pingers: pingers}
}

// Live reports process liveness. Always ok while the process serves.
func (c *Controller) Live(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready pings every registered dependency and reports 503 when any fails.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(c.pingers))
	healthy := true
	for name, ping := range c.pingers {
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status, label := http.StatusOK, "ok"
	if !healthy {
		status, label = http.StatusServiceUnavailable, "degraded"
	}
	helpers.WriteJSON(w, status, map[string]any{
		"status": label,
		"checks": checks,
	})
}
