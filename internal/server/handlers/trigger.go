package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Trigger forces one fault. Omitted fields are chosen by the engine.
func (h *Handlers) Trigger(w http.ResponseWriter, r *http.Request) {
	var req types.TriggerRequest
	if !h.decodeStrict(w, r, &req) {
		return
	}
	h.trigger(w, r, req)
}

// TriggerOperation forces a fault on the service and operation in the path.
func (h *Handlers) TriggerOperation(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, types.TriggerRequest{
		Service:   chi.URLParam(r, "service"),
		Operation: chi.URLParam(r, "operation"),
		FaultKind: types.FaultKind(r.URL.Query().Get("fault_kind")),
	})
}

func (h *Handlers) trigger(w http.ResponseWriter, r *http.Request, req types.TriggerRequest) {
	ev, err := h.engine.Trigger(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, ev)
}
