package http

import (
	"encoding/json"
	"net/http"

	"github.com/windfall/cicero/internal/narration"
	"github.com/windfall/cicero/pkg/response"
)

// NarrationHandler serves the spoken-cue pickup endpoint.
type NarrationHandler struct {
	gateway *narration.Gateway
}

// NewNarrationHandler creates a new narration handler.
func NewNarrationHandler(gateway *narration.Gateway) *NarrationHandler {
	return &NarrationHandler{gateway: gateway}
}

// NextCue blocks until a cue is queued for the profile or the wait times out.
// This is the consumer half of the RPUSH/BLPOP delivery pattern.
func (h *NarrationHandler) NextCue(w http.ResponseWriter, r *http.Request) {
	profile := r.URL.Query().Get("profile")
	if profile == "" {
		response.BadRequest(w, "profile is required")
		return
	}

	data, err := h.gateway.NextCue(r.Context(), profile)
	if err != nil {
		response.Error(w, err)
		return
	}

	var cue narration.SpokenCue
	if err := json.Unmarshal(data, &cue); err != nil {
		response.InternalError(w, "queued cue is corrupt")
		return
	}
	response.JSON(w, http.StatusOK, cue)
}

// ClearQuota resets the narration quota flag after a manual retry.
func (h *NarrationHandler) ClearQuota(w http.ResponseWriter, r *http.Request) {
	h.gateway.ClearQuota()
	response.NoContent(w)
}
