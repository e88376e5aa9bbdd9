package handlers

import "net/http"

// GetStats returns a statistics snapshot.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Statistics())
}

// ResetStats zeroes all counters.
func (h *Handlers) ResetStats(w http.ResponseWriter, _ *http.Request) {
	h.engine.ResetStatistics()
	w.WriteHeader(http.StatusNoContent)
}
