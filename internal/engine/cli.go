package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/omr-grader/constants"
	"github.com/joseph-ayodele/omr-grader/internal/common"
	"github.com/joseph-ayodele/omr-grader/internal/entity"
)

// CLIProcessor drives an external OMR command-line grader. The command is
// invoked once per sheet and must print a JSON grade result on stdout.
type CLIProcessor struct {
	cfg    common.EngineConfig
	runner Runner
	logger *slog.Logger
}

// NewCLIProcessor builds a processor for the configured engine command.
func NewCLIProcessor(cfg common.EngineConfig, logger *slog.Logger) *CLIProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIProcessor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// NewCLIProcessorWithRunner is the test seam.
func NewCLIProcessorWithRunner(cfg common.EngineConfig, runner Runner, logger *slog.Logger) *CLIProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIProcessor{cfg: cfg, runner: runner, logger: logger}
}

// ProcessSheet grades one image, writing marked-image artifacts into
// outputDir. The configured timeout bounds the call so a wedged engine
// cannot stall the worker forever.
func (p *CLIProcessor) ProcessSheet(ctx context.Context, imagePath, outputDir string) (*entity.GradeResult, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	args := []string{
		"--image", imagePath,
		"--output", outputDir,
		"--template", p.cfg.TemplatePath,
		"--answer-key", p.cfg.AnswerKeyPath,
		"--json",
	}
	stdout, stderr, err := p.runner.Run(ctx, p.cfg.Command, args...)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("engine: %s", msg)
	}

	var res entity.GradeResult
	if err := json.Unmarshal(stdout, &res); err != nil {
		return nil, fmt.Errorf("engine: decode output: %w", err)
	}
	normalize(&res, imagePath)
	return &res, nil
}

// normalize fills the fields the engine is allowed to omit so downstream
// accounting never sees holes.
func normalize(res *entity.GradeResult, imagePath string) {
	if res.FileName == "" {
		res.FileName = filepath.Base(imagePath)
	}
	if res.Status == "" {
		if res.Error != "" {
			res.Status = constants.FileFailed
		} else {
			res.Status = constants.FileCompleted
		}
	}
}

// WriteAnswersJSON saves the graded result next to the marked image so the
// per-batch output directory is self-describing.
func WriteAnswersJSON(res *entity.GradeResult, outputDir string) (string, error) {
	stem := strings.TrimSuffix(res.FileName, filepath.Ext(res.FileName))
	path := filepath.Join(outputDir, stem+".json")
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("answers json %s: %w", res.FileName, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("answers json %s: %w", res.FileName, err)
	}
	return path, nil
}
