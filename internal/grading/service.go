// Package grading is the façade the surrounding service layer talks to. It
// owns the submit path (status registration + enqueue) and every read path
// over the status store and the result ledger.
package grading

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/omr-grader/constants"
	"github.com/joseph-ayodele/omr-grader/internal/common"
	"github.com/joseph-ayodele/omr-grader/internal/entity"
	"github.com/joseph-ayodele/omr-grader/internal/ledger"
	"github.com/joseph-ayodele/omr-grader/internal/queue"
	"github.com/joseph-ayodele/omr-grader/internal/status"
)

// Service ties the status store, queue and ledger together behind the
// operations the API surface needs.
type Service struct {
	store   *status.Store
	queue   *queue.Queue
	ledger  *ledger.Ledger
	exports string // directory for materialized CSV exports
	logger  *slog.Logger
}

// NewService wires the façade. exportsDir receives materialized CSV copies.
func NewService(store *status.Store, q *queue.Queue, l *ledger.Ledger, exportsDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, queue: q, ledger: l, exports: exportsDir, logger: logger}
}

// NewBatchID returns a fresh time-derived batch id. The uuid suffix keeps
// ids unique even when two batches land in the same second.
func NewBatchID() string {
	return fmt.Sprintf("batch_%s_%s",
		time.Now().UTC().Format("20060102_150405"),
		uuid.NewString()[:8])
}

// Submit registers a batch and hands it to the worker queue, returning the
// initial status snapshot. The caller guarantees batchID uniqueness; a
// collision reports ErrDuplicateBatch and creates nothing. An empty file
// list is a valid batch that completes vacuously.
func (s *Service) Submit(batchID string, filePaths []string) (*entity.BatchJob, error) {
	if batchID == "" {
		return nil, fmt.Errorf("submit: empty batch id: %w", common.ErrValidation)
	}
	for _, p := range filePaths {
		if p == "" {
			return nil, fmt.Errorf("submit %s: empty file path: %w", batchID, common.ErrValidation)
		}
	}

	names := make([]string, len(filePaths))
	for i, p := range filePaths {
		names[i] = filepath.Base(p)
	}

	b, err := s.store.Create(batchID, names)
	if err != nil {
		return nil, err
	}
	s.queue.Enqueue(queue.Item{BatchID: batchID, Files: filePaths})
	s.logger.Info("batch submitted", "batch_id", batchID, "files", len(filePaths))
	return b, nil
}

// Status returns the current snapshot for a batch, falling back to the
// durable snapshot after a restart.
func (s *Service) Status(batchID string) (*entity.BatchJob, error) {
	return s.store.Get(batchID)
}

// ResultsSummary is the per-batch result listing plus its rollup numbers.
type ResultsSummary struct {
	BatchID      string                `json:"batchId"`
	Status       constants.BatchStatus `json:"status"`
	TotalFiles   int                   `json:"totalFiles"`
	SuccessCount int                   `json:"successCount"`
	FailureCount int                   `json:"failureCount"`
	AverageScore float64               `json:"averageScore"`
	Results      []entity.ResultRecord `json:"results"`
}

// Results returns every ledger row for the batch with summary statistics.
// A batch with no rows yet (including one still queued) reports ErrNotFound.
func (s *Service) Results(batchID string) (*ResultsSummary, error) {
	b, err := s.store.Get(batchID)
	if err != nil {
		return nil, err
	}

	recs, err := s.ledger.QueryByBatch(batchID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("results %s: %w", batchID, common.ErrNotFound)
	}

	sum := &ResultsSummary{
		BatchID:    batchID,
		Status:     b.Status,
		TotalFiles: len(recs),
		Results:    recs,
	}
	var scoreSum float64
	for _, r := range recs {
		if r.Status == constants.FileCompleted {
			sum.SuccessCount++
			scoreSum += r.Score
		} else {
			sum.FailureCount++
		}
	}
	if sum.SuccessCount > 0 {
		avg := scoreSum / float64(sum.SuccessCount)
		if !math.IsNaN(avg) && !math.IsInf(avg, 0) {
			sum.AverageScore = math.Round(avg*100) / 100
		}
	}
	return sum, nil
}

// ExportCSV materializes the batch's ledger rows as a standalone CSV file
// and returns its path.
func (s *Service) ExportCSV(batchID string) (string, error) {
	return s.ledger.ExportCSV(batchID, s.exports)
}

// ExportXLSX returns the batch's ledger rows as an XLSX workbook.
func (s *Service) ExportXLSX(batchID string) ([]byte, error) {
	return s.ledger.ExportXLSX(batchID)
}

// Dashboard aggregates the whole ledger into system-wide counters.
func (s *Service) Dashboard() (entity.DashboardStats, error) {
	return s.ledger.Aggregate()
}
