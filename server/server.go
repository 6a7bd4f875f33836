package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"carscout/config"
	"carscout/search"
)

// Server exposes the acquisition engine over HTTP.
type Server struct {
	http *http.Server
}

func New(cfg *config.Config, coordinator *search.Coordinator, registry *search.JobRegistry, saved SavedSearchStore) *Server {
	h := &Handler{
		coordinator: coordinator,
		registry:    registry,
		saved:       saved,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/search", h.Search)
		r.Post("/search/async", h.SearchAsync)
		r.Get("/jobs/{jobID}", h.JobStatus)
		r.Post("/jobs/{jobID}/cancel", h.CancelJob)
		r.Post("/saved-searches", h.CreateSavedSearch)
		r.Get("/saved-searches", h.ListSavedSearches)
	})

	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	log.Printf("HTTP server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
