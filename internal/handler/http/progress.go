package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/windfall/cicero/internal/progress"
	"github.com/windfall/cicero/pkg/response"
)

// ProgressHandler serves read-only progress views.
type ProgressHandler struct {
	store *progress.Store
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(store *progress.Store) *ProgressHandler {
	return &ProgressHandler{store: store}
}

// Get returns the full progress record for a profile.
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
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

// History returns a page of the analysis history, newest first.
func (h *ProgressHandler) History(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	rec, ok, err := h.store.Load(r.Context(), name)
	if err != nil {
		response.Error(w, err)
		return
	}
	if !ok {
		response.NotFound(w, "profile not found")
		return
	}

	total := len(rec.History)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	totalPages := (total + perPage - 1) / perPage
	response.JSONWithMeta(w, http.StatusOK, rec.History[start:end], &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
