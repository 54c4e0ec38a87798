// Package logging builds the zerolog logger handed to every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/3cpo-dev/autorun/internal/clock"
)

// FileLayout names log files after the moment autorun started.
const FileLayout = "02012006_150405"

type Config struct {
	// Level is one of DEBUG, INFO, WARNING, ERROR, CRITICAL (case-insensitive).
	Level string
	// Directory receives a timestamped log file. Empty logs to Stdout.
	Directory string
	Stdout    io.Writer
	Now       func() time.Time
}

// ParseLevel maps a schedule log level onto zerolog.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "critical", "fatal":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a logger writing to stdout or to a new file under cfg.Directory.
// The closer releases the file; it is a no-op for stdout.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	var (
		out     io.Writer = cfg.Stdout
		closer  io.Closer = nopCloser{}
		noColor bool
	)
	if out == nil {
		out = os.Stdout
	}
	if cfg.Directory != "" {
		if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
		}
		path := filepath.Join(cfg.Directory, now().Format(FileLayout)+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer, noColor = f, f, true
	}

	w := zerolog.ConsoleWriter{Out: out, TimeFormat: clock.Layout, NoColor: noColor}
	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
