package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"carscout/models"
	"carscout/search"
)

// SavedSearchStore persists recurring searches for the scheduler to re-run.
type SavedSearchStore interface {
	CreateSavedSearch(name, owner string, criteria models.SearchCriteria) (int64, error)
	ListActiveSavedSearches() ([]models.SavedSearch, error)
}

// Handler serves the search API.
type Handler struct {
	coordinator *search.Coordinator
	registry    *search.JobRegistry
	saved       SavedSearchStore
}

type searchRequest struct {
	Criteria models.SearchCriteria `json:"criteria"`
	Owner    string                `json:"owner"`
}

func (r *searchRequest) owner() string {
	if r.Owner == "" {
		return "api"
	}
	return r.Owner
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Search handles POST /api/search. It blocks until the job finishes or the
// time budget expires, then returns the aggregated response. Partial results
// from sources that completed are included either way.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.coordinator.SearchAndCollect(r.Context(), req.Criteria, req.owner())
	if err != nil {
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SearchAsync handles POST /api/search/async. It starts the job and returns
// immediately; callers poll GET /api/jobs/{id} for progress.
func (h *Handler) SearchAsync(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// The job outlives this request; detach it from the request context.
	job, _, err := h.coordinator.Search(context.Background(), req.Criteria, req.owner())
	if err != nil {
		writeSearchError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job": map[string]any{"id": job.ID, "status": job.Status},
	})
}

// JobStatus handles GET /api/jobs/{jobID}.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, ok := h.registry.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}

	body := map[string]any{
		"job": map[string]any{"id": job.ID, "status": job.Status},
	}
	if progress, ok := h.coordinator.Progress(jobID); ok {
		body["progress"] = progress
	}
	writeJSON(w, http.StatusOK, body)
}

// CancelJob handles POST /api/jobs/{jobID}/cancel. Only the job's owner may
// cancel it; the owner is taken from the X-Owner header.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	owner := r.Header.Get("X-Owner")
	if owner == "" {
		owner = "api"
	}

	cancelled, status, err := h.coordinator.Cancel(jobID, owner)
	switch {
	case errors.Is(err, search.ErrUnknownJob):
		writeError(w, http.StatusNotFound, "unknown job")
		return
	case errors.Is(err, search.ErrNotOwner):
		writeError(w, http.StatusForbidden, "job belongs to another owner")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": cancelled,
		"status":    status,
	})
}

type savedSearchRequest struct {
	Name     string                `json:"name"`
	Owner    string                `json:"owner"`
	Criteria models.SearchCriteria `json:"criteria"`
}

// CreateSavedSearch handles POST /api/saved-searches. The search is picked
// up by the scheduler on its next round.
func (h *Handler) CreateSavedSearch(w http.ResponseWriter, r *http.Request) {
	if h.saved == nil {
		writeError(w, http.StatusServiceUnavailable, "saved searches unavailable in one-shot mode")
		return
	}

	var req savedSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := req.Criteria.Validate(); err != nil {
		writeSearchError(w, err)
		return
	}

	owner := req.Owner
	if owner == "" {
		owner = "api"
	}

	id, err := h.saved.CreateSavedSearch(req.Name, owner, req.Criteria)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// ListSavedSearches handles GET /api/saved-searches.
func (h *Handler) ListSavedSearches(w http.ResponseWriter, r *http.Request) {
	if h.saved == nil {
		writeError(w, http.StatusServiceUnavailable, "saved searches unavailable in one-shot mode")
		return
	}

	saved, err := h.saved.ListActiveSavedSearches()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if saved == nil {
		saved = []models.SavedSearch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"savedSearches": saved})
}

func writeSearchError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]string{"field": verr.Field, "reason": verr.Reason},
		})
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
