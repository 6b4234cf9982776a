package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/omr-grader/constants"
	"github.com/joseph-ayodele/omr-grader/internal/common"
	"github.com/joseph-ayodele/omr-grader/internal/engine"
	"github.com/joseph-ayodele/omr-grader/internal/grading"
	"github.com/joseph-ayodele/omr-grader/internal/ledger"
	"github.com/joseph-ayodele/omr-grader/internal/queue"
	"github.com/joseph-ayodele/omr-grader/internal/status"
	"github.com/joseph-ayodele/omr-grader/internal/worker"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir   = flag.String("dir", "", "directory of sheet images to grade (required)")
		quiet = flag.Bool("quiet", false, "suppress worker logs, print the summary only")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *quiet {
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	images, err := collectImages(*dir)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if len(images) == 0 {
		printError("Error: no sheet images (.jpg/.jpeg/.png) in %s\n", *dir)
		os.Exit(1)
	}

	for _, d := range []string{cfg.Storage.ResultsDir(), cfg.Storage.BatchesDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			printError("Error: create %s: %v\n", d, err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := status.NewStore(cfg.Storage.BatchesDir(), logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	led, err := ledger.Open(filepath.Join(cfg.Storage.ResultsDir(), constants.MasterLedgerName), logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	q := queue.New()
	pool := worker.NewPool(q, store, led, engine.NewCLIProcessor(cfg.Engine, logger),
		cfg.Storage.ResultsDir(), 1, logger)
	pool.Start(ctx)

	svc := grading.NewService(store, q, led, cfg.Storage.ResultsDir(), logger)
	batchID := grading.NewBatchID()
	if _, err := svc.Submit(batchID, images); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Submitted batch %s with %d sheets\n", batchID, len(images))

	// Poll until the batch reaches a terminal state.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		b, err := svc.Status(batchID)
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		if b.Status.Terminal() {
			break
		}
		select {
		case <-ctx.Done():
			printError("Interrupted at %d%%\n", b.Progress())
			os.Exit(1)
		case <-ticker.C:
		}
	}
	stop()
	pool.Wait()

	sum, err := svc.Results(batchID)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Batch %s: %d graded, %d failed, average score %.2f\n",
		batchID, sum.SuccessCount, sum.FailureCount, sum.AverageScore)

	path, err := svc.ExportCSV(batchID)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Results written to %s\n", path)
}

func collectImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if constants.AllowedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
