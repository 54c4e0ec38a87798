package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"INFO":     zerolog.InfoLevel,
		"":         zerolog.InfoLevel,
		"debug":    zerolog.DebugLevel,
		"WARNING":  zerolog.WarnLevel,
		"Error":    zerolog.ErrorLevel,
		"CRITICAL": zerolog.FatalLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %v, got %v", in, want, got)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewStdoutFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Config{Level: "WARNING", Stdout: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestNewFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")
	at := time.Date(2026, 10, 19, 8, 5, 3, 0, time.Local)
	logger, closer, err := New(Config{Level: "INFO", Directory: dir, Now: func() time.Time { return at }})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info().Str("run", "run-1").Msg("Starting run-1")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "19102026_080503.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "Starting run-1") {
		t.Fatalf("log file missing message: %q", content)
	}
	if strings.Contains(string(content), "\x1b[") {
		t.Fatalf("log file must not contain colour codes")
	}
}
