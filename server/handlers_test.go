package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carscout/models"
)

type stubSavedStore struct {
	created []models.SavedSearch
	active  []models.SavedSearch
	listErr error
	nextID  int64
}

func (s *stubSavedStore) CreateSavedSearch(name, owner string, criteria models.SearchCriteria) (int64, error) {
	s.nextID++
	s.created = append(s.created, models.SavedSearch{ID: s.nextID, Name: name, Owner: owner, Criteria: criteria})
	return s.nextID, nil
}

func (s *stubSavedStore) ListActiveSavedSearches() ([]models.SavedSearch, error) {
	return s.active, s.listErr
}

func TestCreateSavedSearch(t *testing.T) {
	store := &stubSavedStore{}
	h := &Handler{saved: store}

	body := `{"name":"daily kia","owner":"tudor","criteria":{"brand":"kia","priceMax":15000}}`
	req := httptest.NewRequest(http.MethodPost, "/api/saved-searches", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateSavedSearch(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body)
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 1 {
		t.Fatalf("id = %d, want 1", resp.ID)
	}
	if len(store.created) != 1 || store.created[0].Name != "daily kia" || store.created[0].Owner != "tudor" {
		t.Fatalf("stored = %+v", store.created)
	}
	if store.created[0].Criteria.Brand != "kia" {
		t.Fatalf("criteria brand = %q, want kia", store.created[0].Criteria.Brand)
	}
}

func TestCreateSavedSearch_RequiresName(t *testing.T) {
	h := &Handler{saved: &stubSavedStore{}}

	body := `{"criteria":{"brand":"kia"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/saved-searches", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateSavedSearch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateSavedSearch_InvalidCriteria(t *testing.T) {
	store := &stubSavedStore{}
	h := &Handler{saved: store}

	body := `{"name":"anything","criteria":{"priceMax":15000}}`
	req := httptest.NewRequest(http.MethodPost, "/api/saved-searches", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateSavedSearch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(store.created) != 0 {
		t.Fatalf("store should not be touched on invalid criteria, got %+v", store.created)
	}
}

func TestSavedSearches_UnavailableWithoutStore(t *testing.T) {
	h := &Handler{}

	req := httptest.NewRequest(http.MethodGet, "/api/saved-searches", nil)
	rec := httptest.NewRecorder()
	h.ListSavedSearches(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestListSavedSearches(t *testing.T) {
	store := &stubSavedStore{active: []models.SavedSearch{
		{ID: 7, Name: "daily kia", Owner: "tudor", Active: true},
	}}
	h := &Handler{saved: store}

	req := httptest.NewRequest(http.MethodGet, "/api/saved-searches", nil)
	rec := httptest.NewRecorder()
	h.ListSavedSearches(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		SavedSearches []models.SavedSearch `json:"savedSearches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.SavedSearches) != 1 || resp.SavedSearches[0].ID != 7 {
		t.Fatalf("savedSearches = %+v", resp.SavedSearches)
	}
}
