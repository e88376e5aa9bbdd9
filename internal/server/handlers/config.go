package handlers

import (
	"net/http"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// GetConfig returns the live generation config.
func (h *Handlers) GetConfig(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Config())
}

// PatchConfig applies a partial update. The whole patch is validated first;
// a rejected patch leaves the config unchanged.
func (h *Handlers) PatchConfig(w http.ResponseWriter, r *http.Request) {
	var patch types.ConfigPatch
	if !h.decodeStrict(w, r, &patch) {
		return
	}
	cfg, err := h.engine.UpdateConfig(patch)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}
