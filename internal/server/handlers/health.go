package handlers

import (
	"net/http"
	"os"
	"time"
)

// Health returns liveness plus generator state and uptime.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	generator := "stopped"
	if h.scheduler.Running() {
		generator = "running"
	}
	host, _ := os.Hostname()
	uptime := time.Since(h.startedAt)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        h.version,
		"generator":      generator,
		"uptime_seconds": uptime.Seconds(),
		"uptime":         uptime.Truncate(time.Second).String(),
		"hostname":       host,
		"timestamp":      time.Now().UTC(),
	})
}
