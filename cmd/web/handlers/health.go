package handlers

import (
	"net/http"

	"portal/internal/health"
)

type Health struct {
	svc *health.Service
}

func NewHealth(svc *health.Service) *Health {
	return &Health{svc: svc}
}

func (h *Health) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Health) Readiness(w http.ResponseWriter, r *http.Request) {
	res := h.svc.Check(r.Context())
	code := http.StatusOK
	if !res.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ok":         res.OK,
		"checked_at": res.At,
		"checks":     res.Checks,
	})
}
