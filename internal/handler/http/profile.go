package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/catalog"
	"github.com/windfall/cicero/internal/narration"
	"github.com/windfall/cicero/internal/progress"
	"github.com/windfall/cicero/pkg/response"
)

// ProfileHandler handles profile lifecycle endpoints.
type ProfileHandler struct {
	store    *progress.Store
	narrator *narration.Gateway
	log      zerolog.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(store *progress.Store, narrator *narration.Gateway, log zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{store: store, narrator: narrator, log: log}
}

// CreateProfileRequest is the account creation payload.
type CreateProfileRequest struct {
	Name     string           `json:"name"`
	Language catalog.Language `json:"language"`
}

// Create initializes a new profile record and speaks the welcome line.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		response.BadRequest(w, "name is required")
		return
	}
	if req.Language == "" {
		req.Language = catalog.LanguageTurkish
	}
	if !req.Language.Valid() {
		response.BadRequest(w, "unsupported language")
		return
	}

	rec, err := h.store.Create(r.Context(), req.Name, req.Language)
	if err != nil {
		response.Error(w, err)
		return
	}

	h.narrator.AnnounceCue(req.Name, narration.CueWelcome, req.Language, 0)
	response.Created(w, rec)
}

// Get returns the profile record.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rec, ok, err := h.store.Load(r.Context(), name)
	if err != nil {
		response.Error(w, err)
		return
	}
	if !ok {
		response.NotFound(w, "profile not found")
		return
	}
	response.JSON(w, http.StatusOK, rec)
}

// SetLanguageRequest is the language switch payload.
type SetLanguageRequest struct {
	Language catalog.Language `json:"language"`
}

// SetLanguage switches the preferred coaching language. Score, history and
// streak are untouched; the change is persisted immediately.
func (h *ProfileHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req SetLanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if !req.Language.Valid() {
		response.BadRequest(w, "unsupported language")
		return
	}

	rec, err := h.store.SetLanguage(r.Context(), name, req.Language)
	if err != nil {
		response.Error(w, err)
		return
	}

	h.narrator.AnnounceCue(name, narration.CueLanguage, req.Language, 0)
	response.JSON(w, http.StatusOK, rec)
}

// Delete removes the profile record (sign-out).
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.store.Delete(r.Context(), name); err != nil {
		response.Error(w, err)
		return
	}
	h.log.Info().Str("profile", name).Msg("Profile deleted")
	response.NoContent(w)
}
