package status

import (
	"errors"
	"testing"

	"github.com/joseph-ayodele/omr-grader/constants"
	"github.com/joseph-ayodele/omr-grader/internal/common"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

// TestCreateAndGet verifies a fresh batch starts queued with every counter
// consistent.
func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Create("b1", []string{"a.jpg", "b.jpg"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	b, err := s.Get("b1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Status != constants.BatchQueued {
		t.Fatalf("status = %s, want queued", b.Status)
	}
	if b.TotalFiles != 2 || b.Pending != 2 || b.Processed != 0 || b.Failed != 0 {
		t.Fatalf("counters = total %d pending %d processed %d failed %d",
			b.TotalFiles, b.Pending, b.Processed, b.Failed)
	}
	for i, f := range b.Files {
		if f.Status != constants.FileQueued {
			t.Fatalf("file %d status = %s, want queued", i, f.Status)
		}
	}
}

// TestDuplicateCreate checks an id collision is rejected and creates
// nothing.
func TestDuplicateCreate(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("b1", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create("b1", nil); !errors.Is(err, common.ErrDuplicateBatch) {
		t.Fatalf("second create error = %v, want ErrDuplicateBatch", err)
	}
}

// TestGetReturnsCopy verifies callers cannot mutate store state through the
// returned snapshot.
func TestGetReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("b1", []string{"a.jpg"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	b, _ := s.Get("b1")
	b.Files[0].Status = constants.FileFailed
	b.Processed = 99

	b2, _ := s.Get("b1")
	if b2.Files[0].Status != constants.FileQueued || b2.Processed != 0 {
		t.Fatal("snapshot mutation leaked into the store")
	}
}

// TestCounterInvariant asserts processed + failed + pending == totalFiles
// after every outcome recording.
func TestCounterInvariant(t *testing.T) {
	s := newTestStore(t)
	files := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"}
	if _, err := s.Create("b1", files); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Transition("b1", constants.BatchProcessing); err != nil {
		t.Fatalf("transition: %v", err)
	}

	outcomes := []constants.FileStatus{
		constants.FileCompleted,
		constants.FileFailed,
		constants.FileCompleted,
		constants.FileFailed,
	}
	for i, st := range outcomes {
		if err := s.RecordFileOutcome("b1", i, st, 10, 50, ""); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		b, _ := s.Get("b1")
		if b.Processed+b.Failed+b.Pending != b.TotalFiles {
			t.Fatalf("after %d: %d + %d + %d != %d",
				i, b.Processed, b.Failed, b.Pending, b.TotalFiles)
		}
	}

	b, _ := s.Get("b1")
	if b.Processed != 2 || b.Failed != 2 || b.Pending != 0 {
		t.Fatalf("final counters = %d/%d/%d", b.Processed, b.Failed, b.Pending)
	}
}

// TestRecordOutcomeTwice verifies the exactly-once contract.
func TestRecordOutcomeTwice(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("b1", []string{"a.jpg"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Transition("b1", constants.BatchProcessing); err != nil {
		t.Fatalf("transition: %v", err)
	}

	if err := s.RecordFileOutcome("b1", 0, constants.FileCompleted, 5, 100, ""); err != nil {
		t.Fatalf("first record: %v", err)
	}
	err := s.RecordFileOutcome("b1", 0, constants.FileFailed, 0, 0, "again")
	if !errors.Is(err, common.ErrAlreadyTerminal) {
		t.Fatalf("second record error = %v, want ErrAlreadyTerminal", err)
	}

	// first outcome must be untouched
	b, _ := s.Get("b1")
	if b.Files[0].Status != constants.FileCompleted || b.Failed != 0 {
		t.Fatal("rejected call mutated state")
	}
}

// TestTransitionEdges walks the allowed and forbidden state machine edges.
func TestTransitionEdges(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("b1", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	// queued -> completed skips processing
	if err := s.Transition("b1", constants.BatchCompleted); !errors.Is(err, common.ErrInvalidTransition) {
		t.Fatalf("queued->completed error = %v, want ErrInvalidTransition", err)
	}
	if err := s.Transition("b1", constants.BatchProcessing); err != nil {
		t.Fatalf("queued->processing: %v", err)
	}
	if err := s.Transition("b1", constants.BatchCompleted); err != nil {
		t.Fatalf("processing->completed: %v", err)
	}
	// terminal states never move again
	if err := s.Transition("b1", constants.BatchFailed); !errors.Is(err, common.ErrInvalidTransition) {
		t.Fatalf("completed->failed error = %v, want ErrInvalidTransition", err)
	}

	b, _ := s.Get("b1")
	if b.StartedAt == nil || b.CompletedAt == nil {
		t.Fatal("timestamps not stamped on edges")
	}
}

// TestFailedFromAnyNonTerminal verifies the failure edge from queued.
func TestFailedFromAnyNonTerminal(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("b1", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Transition("b1", constants.BatchFailed); err != nil {
		t.Fatalf("queued->failed: %v", err)
	}
}

// TestGetUnknownBatch covers the NotFound taxonomy.
func TestGetUnknownBatch(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("never-submitted"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

// TestSnapshotRecovery simulates a restart: a second store over the same
// directory serves the snapshot read-only.
func TestSnapshotRecovery(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s1.Create("b1", []string{"a.jpg"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s1.Transition("b1", constants.BatchProcessing); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := s1.RecordFileOutcome("b1", 0, constants.FileCompleted, 8, 80, ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s1.Transition("b1", constants.BatchCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s1.Snapshot("b1"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// "restart"
	s2, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	b, err := s2.Get("b1")
	if err != nil {
		t.Fatalf("get after restart: %v", err)
	}
	if b.Status != constants.BatchCompleted || b.Processed != 1 {
		t.Fatalf("recovered batch = %s processed %d", b.Status, b.Processed)
	}

	// recovered-only entries are read-only
	if err := s2.RecordFileOutcome("b1", 0, constants.FileFailed, 0, 0, ""); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("mutation error = %v, want ErrNotFound", err)
	}

	// and the id stays taken
	if _, err := s2.Create("b1", nil); !errors.Is(err, common.ErrDuplicateBatch) {
		t.Fatalf("recreate error = %v, want ErrDuplicateBatch", err)
	}
}

// TestUnsnapshottedBatchIsLost documents the accepted crash window between
// creation and the first snapshot.
func TestUnsnapshottedBatchIsLost(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s1.Create("b1", []string{"a.jpg"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	s2, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s2.Get("b1"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
