// Package handlers implements the HTTP endpoints: auth, document management,
// the ingestion trigger and the query surface.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
)

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError maps the error's code onto an HTTP status and writes the
// failure envelope. Internal causes are logged, not exposed.
func respondError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := core.CodeOf(err)
	status := core.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	respond(w, status, map[string]any{
		"success": false,
		"error":   core.MessageOf(err),
		"code":    code,
	})
}

// decodeJSON reads the request body into v, rejecting unknown garbage with
// a validation error.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return core.NewError(core.CodeValidation, "invalid request body", err)
	}
	return nil
}
