package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carscout/config"
)

func largePage(core string) string {
	return "<html><body>" + core + strings.Repeat("<!-- pad -->", 200) + "</body></html>"
}

func TestDirectFetch_OK(t *testing.T) {
	page := largePage("<article data-guid='x'>Peugeot 208</article>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a browser user agent")
		}
		if !strings.HasPrefix(r.Header.Get("Accept-Language"), "nl-NL") {
			t.Error("expected Dutch accept-language")
		}
		w.Write([]byte(page))
	}))
	defer srv.Close()

	s := NewDirectStrategy(srv.Client())
	body, err := s.Fetch(context.Background(), srv.URL, &config.SourceConfig{ID: "autoscout"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(body) != page {
		t.Fatal("body mangled")
	}
}

func TestDirectFetch_Status403IsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewDirectStrategy(srv.Client())
	_, err := s.Fetch(context.Background(), srv.URL, &config.SourceConfig{ID: "autoscout"})
	if ClassOf(err) != ClassBlocked {
		t.Fatalf("expected blocked, got %v", err)
	}
}

func TestDirectFetch_Status429IsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewDirectStrategy(srv.Client())
	_, err := s.Fetch(context.Background(), srv.URL, &config.SourceConfig{ID: "autoscout"})
	if ClassOf(err) != ClassTransient {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestDirectFetch_AntiBotMarkerIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(largePage("Pardon Our Interruption")))
	}))
	defer srv.Close()

	s := NewDirectStrategy(srv.Client())
	_, err := s.Fetch(context.Background(), srv.URL, &config.SourceConfig{ID: "autoscout"})
	if ClassOf(err) != ClassBlocked {
		t.Fatalf("expected blocked for anti-bot marker, got %v", err)
	}
}

func TestDirectFetch_OwnTimeoutIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	s := NewDirectStrategy(srv.Client())
	_, err := s.Fetch(context.Background(), srv.URL, &config.SourceConfig{ID: "autoscout", TimeoutSec: 1})
	// A tarpit that never answers within the per-fetch timeout must fall
	// back to the next strategy, not abort the source.
	if ClassOf(err) != ClassBlocked {
		t.Fatalf("expected blocked on own timeout, got %v", err)
	}
}

func TestDirectFetch_ExpiredParentContextStaysFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	s := NewDirectStrategy(srv.Client())
	_, err := s.Fetch(ctx, srv.URL, &config.SourceConfig{ID: "autoscout", TimeoutSec: 5})
	if ClassOf(err) != ClassFatal {
		t.Fatalf("a spent job deadline must stay fatal, got %v", err)
	}
}

func TestDirectFetch_UndersizedBodyIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	s := NewDirectStrategy(srv.Client())
	_, err := s.Fetch(context.Background(), srv.URL, &config.SourceConfig{ID: "autoscout"})
	if ClassOf(err) != ClassBlocked {
		t.Fatalf("expected blocked for undersized body, got %v", err)
	}
}
