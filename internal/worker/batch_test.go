package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// stubSleep records requested delays instead of sleeping
func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = orig })
	return &delays
}

func TestBatchRunner_DelaysOnlyAfterWork(t *testing.T) {
	delays := stubSleep(t)
	runner := NewBatchRunner(1500*time.Millisecond, "", nil)

	outcomes := map[string]StepOutcome{"a": StepDone, "b": StepSkipped, "c": StepDone, "d": StepDone}
	var seen []string
	report, err := runner.Run(context.Background(), []string{"a", "b", "c", "d"}, false, func(ctx context.Context, key string) (StepOutcome, error) {
		seen = append(seen, key)
		return outcomes[key], nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != 4 || seen[0] != "a" || seen[3] != "d" {
		t.Errorf("expected sequential order, got %v", seen)
	}
	if report.Processed != 3 || report.Skipped != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	// a -> b waits, b skipped -> c does not, c -> d waits
	if len(*delays) != 2 {
		t.Errorf("expected 2 delays, got %v", *delays)
	}
	for _, d := range *delays {
		if d != 1500*time.Millisecond {
			t.Errorf("unexpected delay %v", d)
		}
	}
}

func TestBatchRunner_FailuresDoNotStopTheBatch(t *testing.T) {
	stubSleep(t)
	runner := NewBatchRunner(time.Second, "", nil)

	report, err := runner.Run(context.Background(), []string{"a", "b", "c"}, false, func(ctx context.Context, key string) (StepOutcome, error) {
		if key == "b" {
			return StepDone, errors.New("inference failed")
		}
		return StepDone, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Processed != 2 || report.Failed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Errors["b"] != "inference failed" {
		t.Errorf("expected error for b, got %v", report.Errors)
	}
}

func TestBatchRunner_CancelReportsRemaining(t *testing.T) {
	stubSleep(t)
	runner := NewBatchRunner(0, "", nil)
	ctx, cancel := context.WithCancel(context.Background())

	report, err := runner.Run(ctx, []string{"a", "b", "c", "d"}, false, func(ctx context.Context, key string) (StepOutcome, error) {
		if key == "b" {
			cancel()
		}
		return StepDone, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Processed != 2 || report.Remaining != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestBatchRunner_ResumeFromCheckpoint(t *testing.T) {
	stubSleep(t)
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	runner := NewBatchRunner(0, path, nil)
	keys := []string{"a", "b", "c"}

	_, err := runner.Run(context.Background(), keys, false, func(ctx context.Context, key string) (StepOutcome, error) {
		if key == "c" {
			return StepDone, errors.New("timeout")
		}
		return StepDone, nil
	})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	cp, err := runner.LoadCheckpoint()
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if len(cp.Completed) != 2 || cp.Failed["c"] != "timeout" {
		t.Errorf("unexpected checkpoint: %+v", cp)
	}

	var rerun []string
	report, err := runner.Run(context.Background(), keys, true, func(ctx context.Context, key string) (StepOutcome, error) {
		rerun = append(rerun, key)
		return StepDone, nil
	})
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if len(rerun) != 1 || rerun[0] != "c" {
		t.Errorf("expected only the failed key to rerun, got %v", rerun)
	}
	if report.Resumed != 2 || report.Processed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	cp, err = runner.LoadCheckpoint()
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if len(cp.Failed) != 0 || len(cp.Completed) != 3 {
		t.Errorf("unexpected checkpoint after resume: %+v", cp)
	}

	if err := runner.ClearCheckpoint(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("checkpoint should be removed")
	}
}

func TestBatchRunner_CorruptCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	runner := NewBatchRunner(0, path, nil)
	_, err := runner.Run(context.Background(), []string{"a"}, true, func(ctx context.Context, key string) (StepOutcome, error) {
		return StepDone, nil
	})
	if err == nil {
		t.Error("expected error for corrupt checkpoint")
	}
}

func TestReadURLsFromFile(t *testing.T) {
	content := `# comment
https://ra.co/dj/jeffmills

https://musicbrainz.org/artist/x
https://ra.co/dj/jeffmills
`
	tmpfile := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(tmpfile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	urls, err := ReadURLsFromFile(tmpfile)
	if err != nil {
		t.Fatalf("ReadURLsFromFile failed: %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("expected 2 unique URLs, got %d: %v", len(urls), urls)
	}

	if _, err := ReadURLsFromFile("nonexistent.txt"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}
