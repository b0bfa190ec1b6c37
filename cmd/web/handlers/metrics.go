package handlers

import (
	"net/http"

	"portal/kit/observability"
)

type Metrics struct {
	m *observability.Metrics
}

func NewMetrics(m *observability.Metrics) *Metrics {
	return &Metrics{m: m}
}

func (h *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.m.Snapshot())
}
