package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/omr-grader/constants"
	"github.com/joseph-ayodele/omr-grader/internal/common"
	"github.com/joseph-ayodele/omr-grader/internal/grading"
)

// handleUpload accepts a multipart batch of sheet images, saves them under a
// fresh batch directory and submits the batch for grading.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, r, fmt.Errorf("parse upload: %v: %w", err, common.ErrValidation))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeError(w, r, fmt.Errorf("no files provided: %w", common.ErrValidation))
		return
	}
	for _, fh := range files {
		if err := validateSheetFile(fh); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	batchID := grading.NewBatchID()
	batchDir := filepath.Join(s.storage.UploadsDir(), batchID)
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		s.writeError(w, r, fmt.Errorf("create batch dir: %w", err))
		return
	}

	saved := make([]string, 0, len(files))
	for _, fh := range files {
		path, err := s.saveUpload(fh, batchDir)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		saved = append(saved, path)
	}

	b, err := s.svc.Submit(batchID, saved)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("batch uploaded", "batch_id", batchID, "files", len(saved))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"batchId":    batchID,
		"status":     b.Status,
		"totalFiles": b.TotalFiles,
		"queuedAt":   b.QueuedAt,
		"statusUrl":  "/api/omr/status/" + batchID,
		"message":    fmt.Sprintf("Batch queued with %d files", b.TotalFiles),
	})
}

func validateSheetFile(fh *multipart.FileHeader) error {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !constants.AllowedExtensions[ext] {
		return fmt.Errorf("invalid file %s: only JPG/PNG images allowed: %w",
			fh.Filename, common.ErrValidation)
	}
	ct := fh.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("invalid file %s: content type %s is not an image: %w",
			fh.Filename, ct, common.ErrValidation)
	}
	return nil
}

func (s *Server) saveUpload(fh *multipart.FileHeader, batchDir string) (string, error) {
	if fh.Size > s.storage.MaxFileSize {
		return "", fmt.Errorf("file %s exceeds maximum size of %d bytes: %w",
			fh.Filename, s.storage.MaxFileSize, common.ErrValidation)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	// filepath.Base strips any path components a hostile client sends
	path := filepath.Join(batchDir, filepath.Base(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save upload %s: %w", fh.Filename, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, s.storage.MaxFileSize+1)); err != nil {
		return "", fmt.Errorf("save upload %s: %w", fh.Filename, err)
	}
	return path, nil
}
