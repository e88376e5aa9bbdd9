package handlers

import (
	"context"
	"net/http"
)

type generatorStatus struct {
	Running  bool    `json:"running"`
	Changed  bool    `json:"changed"`
	Interval float64 `json:"interval_seconds"`
}

// GeneratorStatus reports whether scheduled generation is running.
func (h *Handlers) GeneratorStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.status(false))
}

// StartGenerator starts scheduled generation. Starting a running generator
// is not an error; changed reports whether anything happened.
func (h *Handlers) StartGenerator(w http.ResponseWriter, r *http.Request) {
	// The loop outlives the request.
	changed := h.scheduler.Start(context.WithoutCancel(r.Context()))
	h.writeJSON(w, http.StatusOK, h.status(changed))
}

// StopGenerator stops scheduled generation after any in-flight tick.
func (h *Handlers) StopGenerator(w http.ResponseWriter, r *http.Request) {
	changed := h.scheduler.Stop(r.Context())
	h.writeJSON(w, http.StatusOK, h.status(changed))
}

func (h *Handlers) status(changed bool) generatorStatus {
	return generatorStatus{
		Running:  h.scheduler.Running(),
		Changed:  changed,
		Interval: h.engine.Interval().Seconds(),
	}
}

// GetPattern returns the pattern controller's state.
func (h *Handlers) GetPattern(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.PatternState())
}

// ResetPattern restarts the current pattern from its initial phase.
func (h *Handlers) ResetPattern(w http.ResponseWriter, _ *http.Request) {
	h.engine.ResetPattern()
	w.WriteHeader(http.StatusNoContent)
}
