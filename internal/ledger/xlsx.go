package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/omr-grader/internal/common"
)

// ExportXLSX returns an XLSX workbook (as bytes) holding one row per ledger
// entry for the batch. A batch with zero rows reports ErrNotFound.
func (l *Ledger) ExportXLSX(batchID string) ([]byte, error) {
	recs, err := l.QueryByBatch(batchID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("export xlsx %s: %w", batchID, common.ErrNotFound)
	}

	f := excelize.NewFile()
	const sheet = "Results"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Batch", "File", "Roll Number", "Score", "Max Score",
		"Percentage", "Responses", "Status", "Created At", "Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		respJSON, err := json.Marshal(r.Responses)
		if err != nil {
			respJSON = []byte("{}")
		}

		write(1, r.BatchID)
		write(2, r.FileName)
		write(3, r.RollNumber)
		write(4, r.Score)
		write(5, r.MaxScore)
		write(6, r.Percentage)
		write(7, string(respJSON))
		write(8, string(r.Status))
		write(9, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		write(10, r.Error)

		row++
	}

	// Widen the busy columns
	_ = f.SetColWidth(sheet, "A", "B", 24)
	_ = f.SetColWidth(sheet, "G", "G", 40)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export xlsx %s: %w", batchID, err)
	}
	l.logger.Info("xlsx export built", "batch_id", batchID, "rows", len(recs))
	return buf.Bytes(), nil
}
