package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/provenance/internal/logger"
)

// StepOutcome tells the runner what a step did
type StepOutcome int

const (
	// StepDone means the step did its work, including any inference call
	StepDone StepOutcome = iota
	// StepSkipped means there was nothing to do; no delay follows
	StepSkipped
)

// StepFunc processes one batch item identified by key
type StepFunc func(ctx context.Context, key string) (StepOutcome, error)

// Checkpoint records batch progress on disk so an interrupted run can resume
type Checkpoint struct {
	Completed []string          `json:"completed"`
	Failed    map[string]string `json:"failed,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BatchReport summarizes a batch run
type BatchReport struct {
	Total     int               `json:"total"`
	Processed int               `json:"processed"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Resumed   int               `json:"resumed"` // Completed by an earlier run
	Remaining int               `json:"remaining"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// sleepFunc waits for d or until ctx ends; tests replace it
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BatchRunner processes items one at a time with a fixed pause between
// steps that did work. Earlier commits are never rolled back.
type BatchRunner struct {
	delay          time.Duration
	checkpointPath string
	log            *logger.Logger
}

// NewBatchRunner creates a runner. An empty checkpoint path disables checkpoints.
func NewBatchRunner(delay time.Duration, checkpointPath string, log *logger.Logger) *BatchRunner {
	return &BatchRunner{delay: delay, checkpointPath: checkpointPath, log: logger.OrNop(log)}
}

// Run processes keys in order. With resume set, keys completed by an
// earlier run are skipped. A cancelled ctx stops the run between items and
// is returned alongside the partial report.
func (b *BatchRunner) Run(ctx context.Context, keys []string, resume bool, step StepFunc) (*BatchReport, error) {
	report := &BatchReport{Total: len(keys), Errors: make(map[string]string)}

	cp := &Checkpoint{Failed: make(map[string]string)}
	if resume {
		loaded, err := b.LoadCheckpoint()
		if err != nil {
			return report, err
		}
		cp = loaded
	}
	done := make(map[string]bool, len(cp.Completed))
	for _, k := range cp.Completed {
		done[k] = true
	}

	worked := false
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			report.Remaining = len(keys) - i
			return report, err
		}
		if done[key] {
			report.Resumed++
			continue
		}

		if worked && b.delay > 0 {
			if err := sleepFunc(ctx, b.delay); err != nil {
				report.Remaining = len(keys) - i
				return report, err
			}
		}

		outcome, err := step(ctx, key)
		switch {
		case err != nil:
			report.Failed++
			report.Errors[key] = err.Error()
			cp.Failed[key] = err.Error()
			worked = true
			b.log.Warn("batch step failed", "key", key, "error", err)
		case outcome == StepSkipped:
			report.Skipped++
			cp.Completed = append(cp.Completed, key)
			delete(cp.Failed, key)
			worked = false
		default:
			report.Processed++
			cp.Completed = append(cp.Completed, key)
			delete(cp.Failed, key)
			worked = true
		}
		done[key] = err == nil

		if err := b.saveCheckpoint(cp); err != nil {
			b.log.Warn("write checkpoint", "path", b.checkpointPath, "error", err)
		}
	}

	b.log.Info("batch complete",
		"total", report.Total,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"resumed", report.Resumed,
	)
	return report, nil
}

// LoadCheckpoint reads the checkpoint file; a missing file is an empty checkpoint
func (b *BatchRunner) LoadCheckpoint() (*Checkpoint, error) {
	cp := &Checkpoint{Failed: make(map[string]string)}
	if b.checkpointPath == "" {
		return cp, nil
	}
	data, err := os.ReadFile(b.checkpointPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", b.checkpointPath, err)
	}
	if cp.Failed == nil {
		cp.Failed = make(map[string]string)
	}
	return cp, nil
}

// ClearCheckpoint removes the checkpoint file
func (b *BatchRunner) ClearCheckpoint() error {
	if b.checkpointPath == "" {
		return nil
	}
	if err := os.Remove(b.checkpointPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}

func (b *BatchRunner) saveCheckpoint(cp *Checkpoint) error {
	if b.checkpointPath == "" {
		return nil
	}
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(b.checkpointPath), 0755); err != nil {
		return err
	}
	tmp := b.checkpointPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, b.checkpointPath)
}

// ReadURLsFromFile reads URLs from a file (one per line)
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return urls, nil
}
