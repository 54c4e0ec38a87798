package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/3cpo-dev/autorun/internal/logging"
	"github.com/3cpo-dev/autorun/pkg/api"
)

// LoadConfig reads a YAML schedule from path and validates it.
func LoadConfig(path string) (*api.Schedule, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read schedule: %w", ErrConfig, err)
	}
	var s api.Schedule
	if err := yaml.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("%w: parse schedule %s: %w", ErrConfig, path, err)
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the required sections of a schedule and every run descriptor.
func Validate(s *api.Schedule) error {
	if s.Logging == nil {
		return fmt.Errorf("%w: missing required section %q", ErrConfig, "logging")
	}
	if s.Logging.Level == "" {
		return fmt.Errorf("%w: missing required key %q", ErrConfig, "logging.level")
	}
	if _, err := logging.ParseLevel(s.Logging.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if s.ConfigurationFile == "" {
		return fmt.Errorf("%w: missing required key %q", ErrConfig, "configuration-file")
	}
	if s.Cmd == "" {
		return fmt.Errorf("%w: missing required key %q", ErrConfig, "cmd")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("%w: missing required section %q", ErrConfig, "runs")
	}
	_, err := BuildQueue(s.Runs)
	return err
}
