package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"carscout/config"
)

func renderStrategy(endpoint string, race bool) *RenderStrategy {
	return NewRenderStrategy(&config.RenderConfig{
		APIKey:   "test-key",
		Endpoint: endpoint,
		WaitMS:   100,
		Race:     race,
	}, http.DefaultClient)
}

func TestRenderFetch_PassesTargetAndKey(t *testing.T) {
	page := largePage("<article data-guid='x'>Peugeot 208</article>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api_key") != "test-key" {
			t.Errorf("missing api key")
		}
		if q.Get("url") != "https://www.autotrack.nl/aanbod" {
			t.Errorf("unexpected target url %s", q.Get("url"))
		}
		if q.Get("render_js") != "true" {
			t.Errorf("expected render_js=true off race mode")
		}
		w.Write([]byte(page))
	}))
	defer srv.Close()

	s := renderStrategy(srv.URL, false)
	body, err := s.Fetch(context.Background(), "https://www.autotrack.nl/aanbod", &config.SourceConfig{ID: "autotrack"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(body) != len(page) {
		t.Fatal("body mangled")
	}
}

func TestRenderFetch_MissingKeyIsNotConfigured(t *testing.T) {
	s := NewRenderStrategy(&config.RenderConfig{}, http.DefaultClient)
	_, err := s.Fetch(context.Background(), "https://x", &config.SourceConfig{ID: "autotrack"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("a missing api key must mark the strategy unconfigured, got %v", err)
	}
}

func TestRenderFetch_OwnTimeoutIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	s := renderStrategy(srv.URL, false)
	_, err := s.Fetch(context.Background(), "https://x", &config.SourceConfig{ID: "autotrack", TimeoutSec: 1})
	if ClassOf(err) != ClassBlocked {
		t.Fatalf("a hanging render service must classify blocked, got %v", err)
	}
}

func TestRenderFetch_VendorRenderErrorIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Could not render the page"}`))
	}))
	defer srv.Close()

	s := renderStrategy(srv.URL, false)
	_, err := s.Fetch(context.Background(), "https://x", &config.SourceConfig{ID: "autotrack"})
	if ClassOf(err) != ClassBlocked {
		t.Fatalf("expected vendor render failure to classify blocked, got %v", err)
	}
}

func TestRenderFetch_RaceFirstValidWins(t *testing.T) {
	page := largePage("<div data-testid='result-card'>Peugeot 208</div>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The non-rendered variant comes back undersized; only the
		// rendered one carries the listing grid.
		if r.URL.Query().Get("render_js") == "true" {
			w.Write([]byte(page))
			return
		}
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	s := renderStrategy(srv.URL, true)
	body, err := s.Fetch(context.Background(), "https://www.autotrack.nl/aanbod", &config.SourceConfig{ID: "autotrack"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(body) != len(page) {
		t.Fatal("expected the rendered variant to win")
	}
}

func TestRenderFetch_RaceAllUndersized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	s := renderStrategy(srv.URL, true)
	_, err := s.Fetch(context.Background(), "https://x", &config.SourceConfig{ID: "autotrack"})
	if ClassOf(err) != ClassBlocked {
		t.Fatalf("expected blocked when both variants are undersized, got %v", err)
	}
}
