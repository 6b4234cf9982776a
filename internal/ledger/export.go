package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/omr-grader/internal/common"
)

// ExportCSV materializes a self-contained copy of the ledger restricted to
// one batch and returns its path. A batch with zero rows reports
// ErrNotFound, never an empty file.
func (l *Ledger) ExportCSV(batchID, destDir string) (string, error) {
	recs, err := l.QueryByBatch(batchID)
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", fmt.Errorf("export %s: %w", batchID, common.ErrNotFound)
	}

	path := filepath.Join(destDir, "Results_"+batchID+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", batchID, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("export %s: %w", batchID, err)
	}
	for _, rec := range recs {
		fields, err := encodeRow(rec)
		if err != nil {
			return "", fmt.Errorf("export %s: %w", batchID, err)
		}
		if err := w.Write(fields); err != nil {
			return "", fmt.Errorf("export %s: %w", batchID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("export %s: %w", batchID, err)
	}

	l.logger.Info("csv export written", "batch_id", batchID, "path", path, "rows", len(recs))
	return path, nil
}
