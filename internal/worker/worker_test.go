package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/omr-grader/constants"
	"github.com/joseph-ayodele/omr-grader/internal/entity"
	"github.com/joseph-ayodele/omr-grader/internal/ledger"
	"github.com/joseph-ayodele/omr-grader/internal/queue"
	"github.com/joseph-ayodele/omr-grader/internal/status"
)

// stubEngine grades via a caller-supplied function and records call order.
type stubEngine struct {
	mu    sync.Mutex
	calls []string
	fn    func(imagePath string) (*entity.GradeResult, error)
}

func (e *stubEngine) ProcessSheet(_ context.Context, imagePath, _ string) (*entity.GradeResult, error) {
	e.mu.Lock()
	e.calls = append(e.calls, filepath.Base(imagePath))
	e.mu.Unlock()
	if e.fn != nil {
		return e.fn(imagePath)
	}
	return &entity.GradeResult{
		Status:   constants.FileCompleted,
		FileName: filepath.Base(imagePath),
		Score:    10,
		MaxScore: 10, Percentage: 100,
	}, nil
}

func (e *stubEngine) callOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

type harness struct {
	store  *status.Store
	ledger *ledger.Ledger
	queue  *queue.Queue
	eng    *stubEngine
	pool   *Pool
	cancel context.CancelFunc
}

func newHarness(t *testing.T, eng *stubEngine) *harness {
	t.Helper()
	dir := t.TempDir()

	st, err := status.NewStore(filepath.Join(dir, "batches"), nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	led, err := ledger.Open(filepath.Join(dir, "Results_Master.csv"), nil)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	q := queue.New()
	pool := NewPool(q, st, led, eng, filepath.Join(dir, "results"), 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})

	return &harness{store: st, ledger: led, queue: q, eng: eng, pool: pool, cancel: cancel}
}

// submit registers a batch and hands it to the queue the way the service
// façade does.
func (h *harness) submit(t *testing.T, batchID string, files []string) {
	t.Helper()
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	if _, err := h.store.Create(batchID, names); err != nil {
		t.Fatalf("create %s: %v", batchID, err)
	}
	h.queue.Enqueue(queue.Item{BatchID: batchID, Files: files})
}

func (h *harness) waitTerminal(t *testing.T, batchID string) *entity.BatchJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		b, err := h.store.Get(batchID)
		if err == nil && b.Status.Terminal() {
			return b
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("batch %s never reached a terminal state", batchID)
	return nil
}

// TestBatchWithOneFailingFile is the canonical continue-past-failures
// scenario: three files, the second one's engine call fails, the batch still
// completes with three ledger rows.
func TestBatchWithOneFailingFile(t *testing.T) {
	eng := &stubEngine{fn: func(imagePath string) (*entity.GradeResult, error) {
		if filepath.Base(imagePath) == "two.jpg" {
			return nil, errors.New("unreadable image")
		}
		return &entity.GradeResult{
			Status:   constants.FileCompleted,
			FileName: filepath.Base(imagePath),
			Score:    15, MaxScore: 20, Percentage: 75,
		}, nil
	}}
	h := newHarness(t, eng)

	h.submit(t, "B1", []string{"one.jpg", "two.jpg", "three.jpg"})
	b := h.waitTerminal(t, "B1")

	if b.Status != constants.BatchCompleted {
		t.Fatalf("status = %s, want completed", b.Status)
	}
	if b.Processed != 2 || b.Failed != 1 || b.Pending != 0 {
		t.Fatalf("counters = %d/%d/%d, want 2/1/0", b.Processed, b.Failed, b.Pending)
	}
	if b.Files[1].Status != constants.FileFailed || b.Files[1].Error != "unreadable image" {
		t.Fatalf("file 2 = %+v", b.Files[1])
	}
	if b.Progress() != 100 {
		t.Fatalf("progress = %d, want 100", b.Progress())
	}

	recs, err := h.ledger.QueryByBatch("B1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("ledger rows = %d, want 3", len(recs))
	}
	var completed, failed int
	for _, r := range recs {
		switch r.Status {
		case constants.FileCompleted:
			completed++
		case constants.FileFailed:
			failed++
		}
	}
	if completed != 2 || failed != 1 {
		t.Fatalf("row statuses = %d completed / %d failed", completed, failed)
	}
}

// TestFileOrderMatchesSubmissionOrder verifies strict in-batch sequencing.
func TestFileOrderMatchesSubmissionOrder(t *testing.T) {
	eng := &stubEngine{}
	h := newHarness(t, eng)

	files := []string{"d.jpg", "a.jpg", "c.jpg", "b.jpg"}
	h.submit(t, "B1", files)
	h.waitTerminal(t, "B1")

	got := eng.callOrder()
	for i, f := range files {
		if got[i] != f {
			t.Fatalf("call order = %v, want %v", got, files)
		}
	}

	recs, _ := h.ledger.QueryByBatch("B1")
	for i, f := range files {
		if recs[i].FileName != f {
			t.Fatalf("ledger order = %v at %d, want %s", recs[i].FileName, i, f)
		}
	}
}

// TestEmptyBatchCompletesImmediately covers the zero-file batch: terminal
// completed, progress 100, zero ledger rows.
func TestEmptyBatchCompletesImmediately(t *testing.T) {
	h := newHarness(t, &stubEngine{})

	h.submit(t, "B2", nil)
	b := h.waitTerminal(t, "B2")

	if b.Status != constants.BatchCompleted {
		t.Fatalf("status = %s, want completed", b.Status)
	}
	if b.Progress() != 100 {
		t.Fatalf("progress = %d, want 100", b.Progress())
	}
	recs, _ := h.ledger.QueryByBatch("B2")
	if len(recs) != 0 {
		t.Fatalf("ledger rows = %d, want 0", len(recs))
	}
}

// TestBatchesRunFIFO checks B4's first outcome is never recorded before
// B3's last, given the single worker.
func TestBatchesRunFIFO(t *testing.T) {
	eng := &stubEngine{}
	h := newHarness(t, eng)

	h.submit(t, "B3", []string{"b3-1.jpg", "b3-2.jpg"})
	h.submit(t, "B4", []string{"b4-1.jpg", "b4-2.jpg"})

	h.waitTerminal(t, "B3")
	h.waitTerminal(t, "B4")

	want := []string{"b3-1.jpg", "b3-2.jpg", "b4-1.jpg", "b4-2.jpg"}
	got := eng.callOrder()
	if len(got) != len(want) {
		t.Fatalf("calls = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call order = %v, want %v", got, want)
		}
	}
}

// failingLedger rejects appends after a set number of successes.
type failingLedger struct {
	mu      sync.Mutex
	allowed int
}

func (f *failingLedger) Append(entity.ResultRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowed <= 0 {
		return fmt.Errorf("disk full")
	}
	f.allowed--
	return nil
}

// TestBookkeepingFailureMarksBatchFailed verifies a ledger write failure
// terminates the batch as failed without crashing the worker, and the next
// batch still runs.
func TestBookkeepingFailureMarksBatchFailed(t *testing.T) {
	dir := t.TempDir()
	st, err := status.NewStore(filepath.Join(dir, "batches"), nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	led := &failingLedger{allowed: 1}
	q := queue.New()
	pool := NewPool(q, st, led, &stubEngine{}, filepath.Join(dir, "results"), 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	if _, err := st.Create("B5", []string{"a.jpg", "b.jpg"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	q.Enqueue(queue.Item{BatchID: "B5", Files: []string{"a.jpg", "b.jpg"}})
	if _, err := st.Create("B6", []string{"c.jpg"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	q.Enqueue(queue.Item{BatchID: "B6", Files: []string{"c.jpg"}})

	wait := func(id string) *entity.BatchJob {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			b, err := st.Get(id)
			if err == nil && b.Status.Terminal() {
				return b
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("batch %s never terminal", id)
		return nil
	}

	b5 := wait("B5")
	if b5.Status != constants.BatchFailed {
		t.Fatalf("B5 status = %s, want failed", b5.Status)
	}
	if b5.Error == "" {
		t.Fatal("B5 missing batch-level error text")
	}
	// the outcome recorded before the failure stays valid
	if b5.Processed != 1 {
		t.Fatalf("B5 processed = %d, want 1", b5.Processed)
	}

	// worker survived and is limited only by the stub ledger again
	b6 := wait("B6")
	if b6.Status != constants.BatchFailed {
		t.Fatalf("B6 status = %s, want failed (ledger still failing)", b6.Status)
	}
}
