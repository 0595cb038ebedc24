package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"portwatch/internal/httpapi/middleware"
	"portwatch/internal/repo"
	"portwatch/internal/stats"
)

type Server struct {
	Logger   *zap.Logger
	Targets  repo.TargetStore
	Settings repo.SettingStore
	Stats    *stats.Service

	Keys            middleware.Keys
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewServer(l *zap.Logger, targets repo.TargetStore, settings repo.SettingStore, st *stats.Service) *Server {
	return &Server{
		Logger:         l,
		Targets:        targets,
		Settings:       settings,
		Stats:          st,
		AllowedOrigins: []string{"*"},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: false,
	}))
	burst := s.RateLimitPerMin / 2
	if burst < 1 {
		burst = 1
	}
	r.Use(middleware.RateLimit(s.RateLimitPerMin, burst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		// read surface
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAny(s.Keys))
			r.Get("/targets", s.handleListTargets)
			r.Get("/targets/{id}", s.handleGetTarget)
			r.Get("/stats", s.handleStats)
			r.Get("/stats/export", s.handleExportStats)
			r.Get("/stats/summary", s.handleSummary)
			r.Get("/settings/probe-interval", s.handleGetInterval)
			r.Get("/settings/task-status", s.handleGetStatus)
		})
		// mutations
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(s.Keys))
			r.Post("/targets", s.handleAddTarget)
			r.Put("/targets/{id}", s.handleUpdateTarget)
			r.Delete("/targets/{id}", s.handleDeleteTarget)
			r.Post("/targets/import", s.handleImportTargets)
			r.Post("/settings/probe-interval", s.handleSetInterval)
			r.Post("/settings/task-status", s.handleSetStatus)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
