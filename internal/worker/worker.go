// Package worker drains the batch queue and drives each batch through the
// grading engine, file by file, in submission order.
package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/omr-grader/constants"
	"github.com/joseph-ayodele/omr-grader/internal/engine"
	"github.com/joseph-ayodele/omr-grader/internal/entity"
	"github.com/joseph-ayodele/omr-grader/internal/queue"
)

// StatusStore is the slice of the status store the worker mutates.
type StatusStore interface {
	Transition(batchID string, to constants.BatchStatus) error
	MarkFileProcessing(batchID string, index int) error
	RecordFileOutcome(batchID string, index int, st constants.FileStatus, score, percentage float64, errMsg string) error
	SetBatchError(batchID, msg string)
	Snapshot(batchID string) error
}

// ResultLedger is the single-writer append side of the ledger.
type ResultLedger interface {
	Append(rec entity.ResultRecord) error
}

// Pool runs a fixed number of batch workers. Each worker claims whole
// batches off the queue, never single files, so files within a batch are
// always graded sequentially in submission order. With one worker (the
// default) batches are also processed strictly FIFO.
type Pool struct {
	queue      *queue.Queue
	store      StatusStore
	ledger     ResultLedger
	proc       engine.Processor
	resultsDir string
	workers    int
	logger     *slog.Logger

	wg sync.WaitGroup
}

// NewPool wires a worker pool. workers below 1 is clamped to 1.
func NewPool(q *queue.Queue, store StatusStore, ledger ResultLedger, proc engine.Processor, resultsDir string, workers int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:      q,
		store:      store,
		ledger:     ledger,
		proc:       proc,
		resultsDir: resultsDir,
		workers:    workers,
		logger:     logger,
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.workers; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			p.logger.Info("batch worker started", "worker_id", workerID)
			for {
				item, err := p.queue.Dequeue(ctx)
				if err != nil {
					p.logger.Info("batch worker stopped", "worker_id", workerID)
					return
				}
				p.processBatch(ctx, workerID, item)
			}
		}(i)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() { p.wg.Wait() }

// processBatch drives one batch to a terminal state. A grading failure on
// one file never derails the rest of the batch; a bookkeeping failure
// (ledger append, outcome recording) terminates the batch as failed but the
// worker itself survives and moves on to the next batch.
func (p *Pool) processBatch(ctx context.Context, workerID int, item queue.Item) {
	log := p.logger.With("worker_id", workerID, "batch_id", item.BatchID)
	log.Info("processing batch", "total_files", len(item.Files))

	if err := p.store.Transition(item.BatchID, constants.BatchProcessing); err != nil {
		log.Error("cannot start batch", "error", err)
		return
	}

	outputDir := filepath.Join(p.resultsDir, item.BatchID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		p.failBatch(log, item.BatchID, err)
		return
	}

	for i, imagePath := range item.Files {
		if err := p.store.MarkFileProcessing(item.BatchID, i); err != nil {
			p.failBatch(log, item.BatchID, err)
			return
		}

		res := p.gradeFile(ctx, log, imagePath, outputDir, i, len(item.Files))

		rec := entity.RecordFromResult(item.BatchID, res, time.Now().UTC())
		if err := p.ledger.Append(rec); err != nil {
			p.failBatch(log, item.BatchID, err)
			return
		}
		if err := p.store.RecordFileOutcome(item.BatchID, i, res.Status, res.Score, res.Percentage, res.Error); err != nil {
			p.failBatch(log, item.BatchID, err)
			return
		}
	}

	if err := p.store.Transition(item.BatchID, constants.BatchCompleted); err != nil {
		p.failBatch(log, item.BatchID, err)
		return
	}
	if err := p.store.Snapshot(item.BatchID); err != nil {
		// The batch already completed in memory; losing the snapshot only
		// costs recoverability, so log and keep going.
		log.Error("terminal snapshot failed", "error", err)
	}
	log.Info("batch complete")
}

// gradeFile runs the engine for one sheet. Engine errors become a failed
// result for that file; they never escape.
func (p *Pool) gradeFile(ctx context.Context, log *slog.Logger, imagePath, outputDir string, index, total int) *entity.GradeResult {
	fileName := filepath.Base(imagePath)
	log.Info("grading sheet", "file", fileName, "position", index+1, "total", total)

	res, err := p.proc.ProcessSheet(ctx, imagePath, outputDir)
	if err != nil {
		log.Warn("sheet failed", "file", fileName, "error", err)
		return &entity.GradeResult{
			Status:   constants.FileFailed,
			FileName: fileName,
			Error:    err.Error(),
		}
	}
	if res.FileName == "" {
		res.FileName = fileName
	}
	if !res.Status.Terminal() {
		res.Status = constants.FileCompleted
	}

	if path, err := engine.WriteAnswersJSON(res, outputDir); err != nil {
		log.Error("answers json not written", "file", fileName, "error", err)
	} else {
		log.Debug("answers json written", "path", path)
	}

	log.Info("sheet graded",
		"file", fileName,
		"status", res.Status,
		"score", res.Score,
		"max_score", res.MaxScore,
	)
	return res
}

// failBatch marks the whole batch failed with the error attached. Outcomes
// already recorded for the batch stay valid; partial batches are a normal
// terminal state, not a process failure.
func (p *Pool) failBatch(log *slog.Logger, batchID string, cause error) {
	log.Error("batch failed", "error", cause)
	p.store.SetBatchError(batchID, cause.Error())
	if err := p.store.Transition(batchID, constants.BatchFailed); err != nil {
		log.Error("cannot mark batch failed", "error", err)
	}
	if err := p.store.Snapshot(batchID); err != nil {
		log.Error("failure snapshot failed", "error", err)
	}
}
