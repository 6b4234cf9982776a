// Package engine wraps the external sheet-grading engine behind a small
// capability interface so the worker never depends on how grading happens.
package engine

import (
	"context"

	"github.com/joseph-ayodele/omr-grader/internal/entity"
)

// Processor turns one sheet image into a structured grade result. A call is
// synchronous and side-effect-isolated: it may write a marked-image artifact
// keyed by file name into outputDir, nothing else. A returned error is a
// per-file failure for the caller, never a batch-level one.
type Processor interface {
	ProcessSheet(ctx context.Context, imagePath, outputDir string) (*entity.GradeResult, error)
}
