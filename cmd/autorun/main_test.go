package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/3cpo-dev/autorun/internal/core"
)

func writeFiles(t *testing.T, dir string) string {
	t.Helper()
	base := filepath.Join(dir, "daq.yaml")
	if err := os.WriteFile(base, []byte("trigger:\n  threshold: 1\n  mode: edge\n"), 0o644); err != nil {
		t.Fatalf("write base: %v", err)
	}
	schedule := filepath.Join(dir, "schedule.yaml")
	content := `logging:
  level: INFO
configuration-file: ` + base + `
cmd: test -f {configuration-file}
runs:
  run-1:
    time: 2
    new-parameters:
      trigger:
        threshold: 9
  run-2:
    time:
      start: 01-01-2020 00:00:00
      end: 01-01-2020 01:00:00
`
	if err := os.WriteFile(schedule, []byte(content), 0o644); err != nil {
		t.Fatalf("write schedule: %v", err)
	}
	return schedule
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	if args == nil {
		args = []string{}
	}
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// TestRunSchedule runs a two-run schedule end to end
func TestRunSchedule(t *testing.T) {
	dir := t.TempDir()
	schedule := writeFiles(t, dir)
	metrics := filepath.Join(dir, "autorun.prom")

	out, err := execute(t, schedule, "--output-dir", dir, "--metrics-file", metrics)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if n := strings.Count(out, "Skipping"); n != 1 {
		t.Fatalf("expected one skip entry, got %d:\n%s", n, out)
	}
	if n := strings.Count(out, "ended with return code 0"); n != 1 {
		t.Fatalf("expected one clean exit, got %d:\n%s", n, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "temp_config_run-1.yaml")); err != nil {
		t.Fatalf("derived configuration missing: %v", err)
	}
	prom, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("metrics file missing: %v", err)
	}
	if !strings.Contains(string(prom), "autorun_runs_skipped_total 1") {
		t.Fatalf("unexpected metrics:\n%s", prom)
	}
}

// TestStopIsClean tests that a requested stop is not reported as a failure
func TestStopIsClean(t *testing.T) {
	dir := t.TempDir()
	schedule := writeFiles(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := executeContext(t, ctx, schedule, "--output-dir", dir)
	if err != nil {
		t.Fatalf("expected a clean stop, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "Run queue stopped on request") {
		t.Fatalf("stop not logged:\n%s", out)
	}
	if strings.Contains(out, "Starting run-1") {
		t.Fatalf("run launched after stop:\n%s", out)
	}
}

// TestValidate prints the run order
func TestValidate(t *testing.T) {
	dir := t.TempDir()
	schedule := writeFiles(t, dir)

	out, err := execute(t, "validate", schedule)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "run-1\tduration 2s\toverrides") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "run-2\twindow ") {
		t.Fatalf("unexpected second line %q", lines[1])
	}
}

// TestConfigErrorIsFatal checks that a malformed schedule aborts
func TestConfigErrorIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	if err := os.WriteFile(path, []byte("logging: {level: INFO}\ncmd: x\nruns:\n  run-1:\n    time: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := execute(t, path)
	if !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

// TestArgs checks the positional argument contract
func TestArgs(t *testing.T) {
	if _, err := execute(t); err == nil {
		t.Fatalf("expected error without a schedule")
	}
	if _, err := execute(t, "a.yaml", "b.yaml"); err == nil {
		t.Fatalf("expected error with two schedules")
	}
	out, err := execute(t, "version")
	if err != nil || !strings.HasPrefix(out, "autorun ") {
		t.Fatalf("version: %v %q", err, out)
	}
}
