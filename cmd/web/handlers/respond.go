package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"portal/internal/provider"
	"portal/kit/db"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the core error taxonomy onto HTTP statuses. Upstream
// failures surface as retryable 502/504; everything else tells the
// caller what to fix.
func writeError(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, provider.ErrBadSignature):
		code = http.StatusUnauthorized
	case errors.Is(err, provider.ErrUnknownProvider), errors.Is(err, db.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, db.ErrInvalid):
		code = http.StatusBadRequest
	case errors.Is(err, db.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, provider.ErrTimeout):
		code = http.StatusGatewayTimeout
	case errors.Is(err, provider.ErrUpstream), errors.Is(err, provider.ErrGatewayRejected), errors.Is(err, provider.ErrCircuitOpen):
		code = http.StatusBadGateway
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
