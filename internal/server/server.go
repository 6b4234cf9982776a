// Package server exposes the grading core over HTTP. Handlers are short and
// non-blocking: the submit path registers and enqueues, everything else is a
// read against the status store or the ledger.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/omr-grader/internal/common"
	"github.com/joseph-ayodele/omr-grader/internal/grading"
)

// Server holds the HTTP surface over the grading service.
type Server struct {
	svc     *grading.Service
	storage common.StorageConfig
	logger  *slog.Logger
}

// New builds the server.
func New(svc *grading.Service, storage common.StorageConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, storage: storage, logger: logger}
}

// Routes returns the chi router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/omr", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/status/{batchID}", s.handleStatus)
		r.Get("/results/{batchID}", s.handleResults)
		r.Get("/download/{batchID}", s.handleDownloadCSV)
		r.Get("/download/{batchID}/xlsx", s.handleDownloadXLSX)
		r.Get("/dashboard", s.handleDashboard)
	})

	// marked images, answer JSONs and exports
	fs := http.StripPrefix("/files/", http.FileServer(http.Dir(s.storage.ResultsDir())))
	r.Get("/files/*", fs.ServeHTTP)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "omr-grading-api",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

// writeError maps the core error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, common.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, common.ErrDuplicateBatch):
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
