package entity

import (
	"time"

	"github.com/joseph-ayodele/omr-grader/constants"
)

// FileJob is one entry per input file within a batch. It is mutated only by
// the worker, exactly once per terminal transition, and never regresses.
type FileJob struct {
	FileName   string               `json:"fileName"`
	Status     constants.FileStatus `json:"status"`
	Score      float64              `json:"score"`
	Percentage float64              `json:"percentage"`
	Error      string               `json:"error"`
}

// BatchJob is the live state of one submitted batch. TotalFiles is fixed at
// creation; Processed + Failed + Pending == TotalFiles holds at all times.
type BatchJob struct {
	BatchID     string                `json:"batchId"`
	Status      constants.BatchStatus `json:"status"`
	TotalFiles  int                   `json:"totalFiles"`
	Processed   int                   `json:"processed"`
	Processing  int                   `json:"processing"`
	Pending     int                   `json:"pending"`
	Failed      int                   `json:"failed"`
	QueuedAt    time.Time             `json:"queuedAt"`
	StartedAt   *time.Time            `json:"startedAt,omitempty"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
	Error       string                `json:"error,omitempty"`
	Files       []FileJob             `json:"files"`
}

// Progress derives the percent of files with a recorded terminal outcome.
// An empty batch reads 100 once it is terminal (vacuously done) and 0 before.
func (b *BatchJob) Progress() int {
	if b.TotalFiles == 0 {
		if b.Status.Terminal() {
			return 100
		}
		return 0
	}
	return (b.Processed + b.Failed) * 100 / b.TotalFiles
}

// Clone returns a deep copy so callers never hold a live reference into the
// status store.
func (b *BatchJob) Clone() *BatchJob {
	cp := *b
	cp.Files = make([]FileJob, len(b.Files))
	copy(cp.Files, b.Files)
	return &cp
}
