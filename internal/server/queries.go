package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// secondsPerSheet is the rough grading cost used for the remaining-time
// estimate shown while a batch runs.
const secondsPerSheet = 1.5

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	b, err := s.svc.Status(batchID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	remaining := b.Pending + b.Processing
	s.writeJSON(w, http.StatusOK, map[string]any{
		"batchId":                b.BatchID,
		"status":                 b.Status,
		"totalFiles":             b.TotalFiles,
		"processed":              b.Processed,
		"processing":             b.Processing,
		"pending":                b.Pending,
		"failed":                 b.Failed,
		"progress":               b.Progress(),
		"estimatedTimeRemaining": int(float64(remaining) * secondsPerSheet),
		"queuedAt":               b.QueuedAt,
		"startedAt":              b.StartedAt,
		"completedAt":            b.CompletedAt,
		"error":                  b.Error,
		"files":                  b.Files,
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	sum, err := s.svc.Results(batchID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"batchId":        sum.BatchID,
		"status":         sum.Status,
		"totalFiles":     sum.TotalFiles,
		"successCount":   sum.SuccessCount,
		"failureCount":   sum.FailureCount,
		"averageScore":   sum.AverageScore,
		"results":        sum.Results,
		"csvDownloadUrl": "/api/omr/download/" + batchID,
	})
}

func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	path, err := s.svc.ExportCSV(batchID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=Results_%s.csv", batchID))
	http.ServeFile(w, r, path)
}

func (s *Server) handleDownloadXLSX(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	data, err := s.svc.ExportXLSX(batchID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=Results_%s.xlsx", batchID))
	_, _ = w.Write(data)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Dashboard()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
