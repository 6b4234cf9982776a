package ledger

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/omr-grader/constants"
	"github.com/joseph-ayodele/omr-grader/internal/entity"
)

// Ledger is the append-only CSV log of every processed file across all
// batches. One logical row per processed file, one physical line per row
// (embedded newlines are stripped on append). The file is the single source
// of truth; an in-memory batch-id -> byte-offset index, rebuilt on open and
// extended on append, keeps per-batch reads from rescanning the whole log.
//
// Appends come from the worker only; reads open the file independently, so
// a mutex around append + index is all the locking the single-writer,
// multi-reader contract needs.
type Ledger struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	index map[string][]int64
	size  int64
}

var header = []string{
	"batchId", "fileName", "rollNumber", "score", "maxScore",
	"percentage", "responses", "status", "createdAt", "error",
}

// Open creates the ledger file with its header if missing and rebuilds the
// row index from the existing contents.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{path: path, logger: logger, index: make(map[string][]int64)}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat ledger: %w", err)
	}
	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, fmt.Errorf("write ledger header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("write ledger header: %w", err)
		}
		info, err = f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat ledger: %w", err)
		}
		l.size = info.Size()
		logger.Info("ledger created", "path", path)
		return l, nil
	}

	if err := l.rebuildIndex(f); err != nil {
		return nil, err
	}
	logger.Info("ledger opened", "path", path, "batches", len(l.index))
	return l, nil
}

func (l *Ledger) rebuildIndex(f *os.File) error {
	r := bufio.NewReader(f)
	var offset int64
	first := true
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			if !first {
				if fields, perr := parseLine(line); perr == nil && len(fields) > 0 {
					id := fields[0]
					l.index[id] = append(l.index[id], offset)
				}
			}
			first = false
			offset += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("scan ledger: %w", err)
		}
	}
	l.size = offset
	return nil
}

// Append adds one row for a processed file. Rows are immutable once written;
// corrections require a new row.
func (l *Ledger) Append(rec entity.ResultRecord) error {
	fields, err := encodeRow(rec)
	if err != nil {
		return fmt.Errorf("append %s/%s: %w", rec.BatchID, rec.FileName, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("append %s/%s: %w", rec.BatchID, rec.FileName, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		return fmt.Errorf("append %s/%s: %w", rec.BatchID, rec.FileName, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append %s/%s: %w", rec.BatchID, rec.FileName, err)
	}

	offset := l.size
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("append %s/%s: %w", rec.BatchID, rec.FileName, err)
	}
	l.size = info.Size()
	l.index[rec.BatchID] = append(l.index[rec.BatchID], offset)

	l.logger.Debug("ledger row appended",
		"batch_id", rec.BatchID, "file", rec.FileName, "status", rec.Status)
	return nil
}

// QueryByBatch returns all rows for a batch in append order. A malformed
// response encoding decodes to an empty map rather than failing the whole
// listing.
func (l *Ledger) QueryByBatch(batchID string) ([]entity.ResultRecord, error) {
	l.mu.RLock()
	offsets := make([]int64, len(l.index[batchID]))
	copy(offsets, l.index[batchID])
	l.mu.RUnlock()

	if len(offsets) == 0 {
		return nil, nil
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", batchID, err)
	}
	defer f.Close()

	out := make([]entity.ResultRecord, 0, len(offsets))
	for _, off := range offsets {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return nil, fmt.Errorf("query %s: seek: %w", batchID, err)
		}
		line, err := bufio.NewReader(f).ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("query %s: read row: %w", batchID, err)
		}
		fields, err := parseLine(line)
		if err != nil {
			l.logger.Warn("skipping unparseable ledger row", "batch_id", batchID, "offset", off, "error", err)
			continue
		}
		out = append(out, decodeRow(fields))
	}
	return out, nil
}

// HasBatch reports whether the ledger holds at least one row for the batch.
func (l *Ledger) HasBatch(batchID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.index[batchID]) > 0
}

// Aggregate scans every row and derives the dashboard statistics. An empty
// ledger yields all-zero stats. The result is monotonic as rows are
// appended; there is no cached counter to drift.
func (l *Ledger) Aggregate() (entity.DashboardStats, error) {
	stats := entity.DashboardStats{RecentBatches: []entity.RecentBatch{}}

	recs, err := l.readAll()
	if err != nil {
		return stats, err
	}
	if len(recs) == 0 {
		return stats, nil
	}

	type rollup struct {
		count        int
		allCompleted bool
		createdAt    string
	}
	var firstSeen []string
	byBatch := make(map[string]*rollup)

	var completed int
	var scoreSum float64
	for _, r := range recs {
		stats.TotalScanned++
		switch r.Status {
		case constants.FileCompleted:
			completed++
			scoreSum += r.Score
		case constants.FileFailed:
			stats.TotalFailed++
		}

		ru, ok := byBatch[r.BatchID]
		if !ok {
			ru = &rollup{allCompleted: true, createdAt: r.CreatedAt.Format(time.RFC3339)}
			byBatch[r.BatchID] = ru
			firstSeen = append(firstSeen, r.BatchID)
		}
		ru.count++
		if r.Status != constants.FileCompleted {
			ru.allCompleted = false
		}
	}

	stats.TotalBatches = len(byBatch)
	stats.SuccessRate = round2(finiteOrZero(float64(completed) / float64(stats.TotalScanned) * 100))
	if completed > 0 {
		stats.AverageScore = round2(finiteOrZero(scoreSum / float64(completed)))
	}

	// five most recently first-seen batches, newest first
	start := len(firstSeen) - 5
	if start < 0 {
		start = 0
	}
	for i := len(firstSeen) - 1; i >= start; i-- {
		id := firstSeen[i]
		ru := byBatch[id]
		st := "mixed"
		if ru.allCompleted {
			st = "completed"
		}
		stats.RecentBatches = append(stats.RecentBatches, entity.RecentBatch{
			BatchID:   id,
			FileCount: ru.count,
			Status:    st,
			CreatedAt: ru.createdAt,
		})
	}
	return stats, nil
}

func (l *Ledger) readAll() ([]entity.ResultRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var out []entity.ResultRecord
	first := true
	for {
		line, err := r.ReadString('\n')
		if len(strings.TrimSpace(line)) > 0 && !first {
			fields, perr := parseLine(line)
			if perr != nil {
				l.logger.Warn("skipping unparseable ledger row", "error", perr)
			} else {
				out = append(out, decodeRow(fields))
			}
		}
		if len(line) > 0 {
			first = false
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger: %w", err)
		}
	}
	return out, nil
}

// Row codec. Every field is sanitized to a single line on encode so one
// logical row stays one physical line.

func encodeRow(rec entity.ResultRecord) ([]string, error) {
	respJSON, err := json.Marshal(rec.Responses)
	if err != nil {
		return nil, fmt.Errorf("encode responses: %w", err)
	}
	fields := []string{
		rec.BatchID,
		rec.FileName,
		rec.RollNumber,
		formatFloat(rec.Score),
		formatFloat(rec.MaxScore),
		formatFloat(rec.Percentage),
		string(respJSON),
		string(rec.Status),
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.Error,
	}
	for i, v := range fields {
		fields[i] = sanitize(v)
	}
	return fields, nil
}

func decodeRow(fields []string) entity.ResultRecord {
	// Short rows normalize to zero values rather than failing the read.
	get := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	rec := entity.ResultRecord{
		BatchID:    get(0),
		FileName:   get(1),
		RollNumber: get(2),
		Score:      parseFloat(get(3)),
		MaxScore:   parseFloat(get(4)),
		Percentage: parseFloat(get(5)),
		Status:     constants.FileStatus(get(7)),
		Error:      get(9),
	}
	if err := json.Unmarshal([]byte(get(6)), &rec.Responses); err != nil {
		rec.Responses = entity.Responses{}
	}
	if t, err := time.Parse(time.RFC3339, get(8)); err == nil {
		rec.CreatedAt = t
	}
	return rec
}

func parseLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	return r.Read()
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
