package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/catalog"
	"github.com/windfall/cicero/internal/narration"
	"github.com/windfall/cicero/internal/progress"
	"github.com/windfall/cicero/internal/session"
	"github.com/windfall/cicero/pkg/response"
)

// maxChunkBytes bounds one uploaded audio chunk.
const maxChunkBytes = 4 << 20

// SessionHandler drives the exercise session state machine.
type SessionHandler struct {
	machine  *session.Machine
	store    *progress.Store
	narrator *narration.Gateway
	log      zerolog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(machine *session.Machine, store *progress.Store, narrator *narration.Gateway, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{machine: machine, store: store, narrator: narrator, log: log}
}

// StateResponse is the session view plus the narration quota flag.
type StateResponse struct {
	session.Snapshot
	QuotaExceeded bool `json:"quota_exceeded"`
}

func (h *SessionHandler) state() StateResponse {
	return StateResponse{
		Snapshot:      h.machine.Snapshot(),
		QuotaExceeded: h.narrator.QuotaExceeded(),
	}
}

// State returns the current session state and error classification.
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.state())
}

// SelectRequest picks an exercise for a profile. Either a catalog exercise
// identifier or a custom ear-training word is given, not both.
type SelectRequest struct {
	Profile    string           `json:"profile"`
	ExerciseID string           `json:"exercise_id,omitempty"`
	Word       string           `json:"word,omitempty"`
	Language   catalog.Language `json:"language,omitempty"`
}

// Select starts a new session for an exercise.
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Profile == "" {
		response.BadRequest(w, "profile is required")
		return
	}

	rec, ok, err := h.store.Load(r.Context(), req.Profile)
	if err != nil {
		response.Error(w, err)
		return
	}
	if !ok {
		response.NotFound(w, "profile not found")
		return
	}

	lang := req.Language
	if lang == "" {
		lang = rec.PreferredLanguage
	}
	if !lang.Valid() {
		response.BadRequest(w, "unsupported language")
		return
	}

	var ex catalog.Exercise
	switch {
	case req.ExerciseID != "":
		var found bool
		ex, found = catalog.ByID(req.ExerciseID)
		if !found {
			response.NotFound(w, "exercise not found")
			return
		}
	case req.Word != "":
		ex = catalog.AdHoc(req.Word, lang)
	default:
		response.BadRequest(w, "exercise_id or word is required")
		return
	}

	if err := h.machine.Select(r.Context(), req.Profile, ex, lang); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.state())
}

// StartRecording acquires the capture device.
func (h *SessionHandler) StartRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.machine.StartRecording(r.Context()); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.state())
}

// PushChunk appends one binary audio chunk to the in-flight recording.
func (h *SessionHandler) PushChunk(w http.ResponseWriter, r *http.Request) {
	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChunkBytes))
	if err != nil {
		response.BadRequest(w, "failed to read chunk body")
		return
	}

	if err := h.machine.PushChunk(chunk); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// StopRecording finalizes the capture and dispatches analysis.
func (h *SessionHandler) StopRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.machine.StopRecording(r.Context()); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.state())
}

// RequestAbort asks to leave the session. With work in flight the machine
// enters the confirmation sub-state instead of discarding anything.
func (h *SessionHandler) RequestAbort(w http.ResponseWriter, r *http.Request) {
	h.machine.RequestAbort()
	response.JSON(w, http.StatusOK, h.state())
}

// ConfirmAbort discards the in-flight session.
func (h *SessionHandler) ConfirmAbort(w http.ResponseWriter, r *http.Request) {
	if err := h.machine.ConfirmAbort(); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.state())
}

// DismissAbort resumes the session unchanged.
func (h *SessionHandler) DismissAbort(w http.ResponseWriter, r *http.Request) {
	if err := h.machine.DismissAbort(); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.state())
}

// Retry returns an ended session to listening with the same exercise.
func (h *SessionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	if err := h.machine.Retry(); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.state())
}

// Reset returns the machine to idle.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.machine.Reset(); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.state())
}
