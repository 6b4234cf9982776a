package status

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/omr-grader/constants"
	"github.com/joseph-ayodele/omr-grader/internal/common"
	"github.com/joseph-ayodele/omr-grader/internal/entity"
)

// Store tracks the live state of every batch and mirrors it into one JSON
// snapshot file per batch for crash recovery. The submission path creates
// batches, the worker transitions and records outcomes, and read paths only
// ever see cloned snapshots. Batches found only on disk after a restart are
// read-only.
type Store struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	batches map[string]*entity.BatchJob
}

// NewStore creates a store persisting snapshots under dir.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Store{
		dir:     dir,
		logger:  logger,
		batches: make(map[string]*entity.BatchJob),
	}, nil
}

// Create registers a new batch in state queued with every file queued.
func (s *Store) Create(batchID string, fileNames []string) (*entity.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batchID]; ok {
		return nil, fmt.Errorf("create %s: %w", batchID, common.ErrDuplicateBatch)
	}
	if _, err := os.Stat(s.snapshotPath(batchID)); err == nil {
		return nil, fmt.Errorf("create %s: %w", batchID, common.ErrDuplicateBatch)
	}

	files := make([]entity.FileJob, len(fileNames))
	for i, name := range fileNames {
		files[i] = entity.FileJob{FileName: name, Status: constants.FileQueued}
	}
	b := &entity.BatchJob{
		BatchID:    batchID,
		Status:     constants.BatchQueued,
		TotalFiles: len(fileNames),
		Pending:    len(fileNames),
		QueuedAt:   time.Now().UTC(),
		Files:      files,
	}
	s.batches[batchID] = b
	s.logger.Info("batch registered", "batch_id", batchID, "total_files", len(fileNames))
	return b.Clone(), nil
}

// Transition moves a batch forward along the allowed edges:
// queued -> processing -> completed, or -> failed from any non-terminal
// state. StartedAt and CompletedAt are stamped on the corresponding edges.
func (s *Store) Transition(batchID string, to constants.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("transition %s: %w", batchID, common.ErrNotFound)
	}
	if !validEdge(b.Status, to) {
		return fmt.Errorf("transition %s: %s -> %s: %w", batchID, b.Status, to, common.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	switch to {
	case constants.BatchProcessing:
		b.StartedAt = &now
	case constants.BatchCompleted, constants.BatchFailed:
		b.CompletedAt = &now
		b.Processing = 0
	}
	b.Status = to
	return nil
}

func validEdge(from, to constants.BatchStatus) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case constants.BatchProcessing:
		return from == constants.BatchQueued
	case constants.BatchCompleted:
		return from == constants.BatchProcessing
	case constants.BatchFailed:
		return true
	default:
		return false
	}
}

// MarkFileProcessing flips the live "currently processing" indicator to the
// file at index. Pending stays untouched so the counter invariant holds
// between outcome recordings.
func (s *Store) MarkFileProcessing(batchID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("mark processing %s: %w", batchID, common.ErrNotFound)
	}
	if index < 0 || index >= len(b.Files) {
		return fmt.Errorf("mark processing %s: index %d out of range", batchID, index)
	}
	if b.Files[index].Status.Terminal() {
		return fmt.Errorf("mark processing %s[%d]: %w", batchID, index, common.ErrAlreadyTerminal)
	}
	b.Files[index].Status = constants.FileProcessing
	b.Processing = 1
	return nil
}

// RecordFileOutcome sets the file at index to a terminal status exactly once
// and moves the batch counters. A second call for the same index reports
// ErrAlreadyTerminal; that is a contract violation, never normal flow.
func (s *Store) RecordFileOutcome(batchID string, index int, st constants.FileStatus, score, percentage float64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("record outcome %s: %w", batchID, common.ErrNotFound)
	}
	if index < 0 || index >= len(b.Files) {
		return fmt.Errorf("record outcome %s: index %d out of range", batchID, index)
	}
	if !st.Terminal() {
		return fmt.Errorf("record outcome %s[%d]: %s is not terminal", batchID, index, st)
	}
	f := &b.Files[index]
	if f.Status.Terminal() {
		return fmt.Errorf("record outcome %s[%d]: %w", batchID, index, common.ErrAlreadyTerminal)
	}

	f.Status = st
	f.Score = score
	f.Percentage = percentage
	f.Error = errMsg

	if st == constants.FileCompleted {
		b.Processed++
	} else {
		b.Failed++
	}
	b.Pending--
	b.Processing = 0
	return nil
}

// SetBatchError attaches a batch-level error message (used together with a
// transition to failed).
func (s *Store) SetBatchError(batchID, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.batches[batchID]; ok {
		b.Error = msg
	}
}

// Get returns a point-in-time copy of the batch. On a memory miss it falls
// back to the last durable snapshot; if neither exists it reports
// ErrNotFound. A batch that crashed before its first snapshot is gone.
func (s *Store) Get(batchID string) (*entity.BatchJob, error) {
	s.mu.RLock()
	b, ok := s.batches[batchID]
	if ok {
		defer s.mu.RUnlock()
		return b.Clone(), nil
	}
	s.mu.RUnlock()

	return s.loadSnapshot(batchID)
}

// Snapshot serializes the batch state to its snapshot file. Called at
// minimum on terminal transitions.
func (s *Store) Snapshot(batchID string) error {
	s.mu.RLock()
	b, ok := s.batches[batchID]
	if !ok {
		s.mu.RUnlock()
		return fmt.Errorf("snapshot %s: %w", batchID, common.ErrNotFound)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("snapshot %s: marshal: %w", batchID, err)
	}

	if err := os.WriteFile(s.snapshotPath(batchID), data, 0o644); err != nil {
		return fmt.Errorf("snapshot %s: %w", batchID, err)
	}
	s.logger.Debug("snapshot written", "batch_id", batchID)
	return nil
}

func (s *Store) loadSnapshot(batchID string) (*entity.BatchJob, error) {
	data, err := os.ReadFile(s.snapshotPath(batchID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("get %s: %w", batchID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: read snapshot: %w", batchID, err)
	}
	var b entity.BatchJob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("get %s: decode snapshot: %w", batchID, err)
	}
	return &b, nil
}

func (s *Store) snapshotPath(batchID string) string {
	return filepath.Join(s.dir, batchID+".json")
}
