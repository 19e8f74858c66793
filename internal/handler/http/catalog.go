package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/windfall/cicero/internal/catalog"
	"github.com/windfall/cicero/internal/narration"
	"github.com/windfall/cicero/pkg/response"
)

// CatalogHandler serves the training modules and their exercises.
type CatalogHandler struct {
	narrator *narration.Gateway
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(narrator *narration.Gateway) *CatalogHandler {
	return &CatalogHandler{narrator: narrator}
}

// Modules returns the four training modules.
func (h *CatalogHandler) Modules(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, catalog.Modules())
}

// Exercises returns the exercises of one module for a language. When a
// profile is supplied the module introduction is spoken.
func (h *CatalogHandler) Exercises(w http.ResponseWriter, r *http.Request) {
	category := catalog.Category(chi.URLParam(r, "category"))
	if !category.Valid() {
		response.NotFound(w, "unknown training module")
		return
	}

	lang := catalog.Language(r.URL.Query().Get("language"))
	if lang == "" {
		lang = catalog.LanguageTurkish
	}
	if !lang.Valid() {
		response.BadRequest(w, "unsupported language")
		return
	}

	if profile := r.URL.Query().Get("profile"); profile != "" {
		h.narrator.Announce(profile, narration.ModuleIntro(category, lang), lang, 0)
	}

	response.JSON(w, http.StatusOK, catalog.ByModule(lang, category))
}

// AdHocRequest is the payload for a user-supplied ear-training word.
type AdHocRequest struct {
	Word     string           `json:"word"`
	Language catalog.Language `json:"language"`
}

// AdHoc synthesizes a one-off ear-training exercise for a custom word. The
// exercise is returned to the caller and is not added to the catalog.
func (h *CatalogHandler) AdHoc(w http.ResponseWriter, r *http.Request) {
	var req AdHocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Word == "" {
		response.BadRequest(w, "word is required")
		return
	}
	if req.Language == "" {
		req.Language = catalog.LanguageTurkish
	}
	if !req.Language.Valid() {
		response.BadRequest(w, "unsupported language")
		return
	}

	response.Created(w, catalog.AdHoc(req.Word, req.Language))
}
