// Package handlers implements HTTP request handlers for the faultline control API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwsmith1983/faultline/internal/engine"
	"github.com/dwsmith1983/faultline/internal/scheduler"
	"github.com/dwsmith1983/faultline/pkg/types"
)

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	version   string
	startedAt time.Time
	logger    *slog.Logger
}

// New creates a new Handlers instance.
func New(eng *engine.Engine, sched *scheduler.Scheduler, version string) *Handlers {
	return &Handlers{
		engine:    eng,
		scheduler: sched,
		version:   version,
		startedAt: time.Now(),
		logger:    slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeEngineError maps typed engine errors onto status codes. Validation
// failures carry the offending fields.
func (h *Handlers) writeEngineError(w http.ResponseWriter, err error) {
	var verr *types.ValidationError
	var nf *types.NotFoundError
	switch {
	case errors.As(err, &verr):
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.As(err, &nf):
		h.writeError(w, http.StatusNotFound, nf.Error(), nil)
	default:
		h.writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// decodeStrict decodes a JSON body, rejecting unknown fields. An empty body
// leaves dst untouched.
func (h *Handlers) decodeStrict(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
		return false
	}
	h.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), nil)
	return false
}
