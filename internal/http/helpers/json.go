package helpers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hubgate/hubgate/internal/apperr"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps an error onto the standard JSON error envelope. Internal
// causes never reach the client; they stay on the AppError for logging.
func WriteError(w http.ResponseWriter, err error) {
	ae := apperr.FromError(err)
	if ae.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(ae.RetryAfterSeconds))
	}
	WriteJSON(w, ae.HTTPStatus, map[string]any{
		"error": ae,
	})
}
