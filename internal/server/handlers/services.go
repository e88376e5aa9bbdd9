package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListServices returns every service with its operation names.
func (h *Handlers) ListServices(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.ListServices())
}

// GetService returns one service with per-operation stats and health.
func (h *Handlers) GetService(w http.ResponseWriter, r *http.Request) {
	detail, err := h.engine.ServiceDetail(chi.URLParam(r, "service"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// ListFaults returns every fault kind with its description.
func (h *Handlers) ListFaults(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.ListFaultKinds())
}
