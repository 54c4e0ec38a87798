package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/3cpo-dev/autorun/internal/clock"
	"github.com/3cpo-dev/autorun/internal/overlay"
	"github.com/3cpo-dev/autorun/internal/supervisor"
	"github.com/3cpo-dev/autorun/pkg/api"
)

// Scheduler executes the runs of a schedule one after another.
type Scheduler struct {
	schedule *api.Schedule
	runner   Runner
	logger   zerolog.Logger
	clock    clock.Clock
	recorder Recorder
	workDir  string

	// base is loaded on first use and never modified afterwards.
	base overlay.Tree
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithClock(c clock.Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithRecorder(r Recorder) Option { return func(s *Scheduler) { s.recorder = r } }

// WithWorkDir sets where derived configuration files are written.
func WithWorkDir(dir string) Option { return func(s *Scheduler) { s.workDir = dir } }

// NewScheduler creates a scheduler for a validated schedule.
func NewScheduler(schedule *api.Schedule, runner Runner, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		schedule: schedule,
		runner:   runner,
		logger:   logger,
		clock:    clock.System{},
		recorder: nopRecorder{},
		workDir:  ".",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan returns the run queue in execution order after merging every override
// against the base configuration in memory. Nothing is written or launched.
func (s *Scheduler) Plan() ([]Run, error) {
	queue, err := BuildQueue(s.schedule.Runs)
	if err != nil {
		return nil, err
	}
	for _, r := range queue {
		if r.Overrides == nil {
			continue
		}
		base, err := s.baseTree()
		if err != nil {
			return nil, err
		}
		if _, err := overlay.Materialize(base, r.Overrides); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.ID, err)
		}
	}
	return queue, nil
}

// Run executes the queue. Configuration and overlay errors abort before the
// first run is launched; run outcomes never stop the queue. Cancelling ctx
// interrupts a pending sleep or the running command and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	queue, err := s.Plan()
	if err != nil {
		return err
	}
	if !strings.Contains(s.schedule.Cmd, api.Placeholder) {
		s.logger.Warn().Str("cmd", s.schedule.Cmd).Msgf("Command has no %s placeholder", api.Placeholder)
	}
	s.logger.Info().Int("runs", len(queue)).Msg("Run queue ready")

	for _, r := range queue {
		if err := ctx.Err(); err != nil {
			s.logger.Warn().Str("run", r.ID).Msg("Stop requested, abandoning remaining runs")
			return err
		}
		if err := s.execute(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) execute(ctx context.Context, r Run) error {
	configPath, err := s.configFor(r)
	if err != nil {
		return err
	}
	command := strings.ReplaceAll(s.schedule.Cmd, api.Placeholder, configPath)

	var window clock.Window
	if r.Window != nil {
		window = *r.Window
		now := s.clock.Now()
		switch {
		case window.Passed(now):
			s.logger.Info().Str("run", r.ID).Time("end", window.End).
				Msgf("The window for %s ended at '%s'. Skipping", r.ID, window.End.Format(clock.Layout))
			s.recorder.RunSkipped(r.ID)
			return nil
		case window.Pending(now):
			wait := window.Start.Sub(now)
			s.logger.Info().Str("run", r.ID).Time("start", window.Start).
				Msgf("Current time is '%s' which is before the start time '%s' for %s",
					now.Format(clock.Layout), window.Start.Format(clock.Layout), r.ID)
			s.logger.Info().Str("run", r.ID).Dur("sleep", wait).Msgf("Sleeping for %.1f seconds", wait.Seconds())
			if err := s.clock.Sleep(ctx, wait); err != nil {
				s.logger.Warn().Str("run", r.ID).Msg("Stop requested while waiting for the window")
				return err
			}
		}
	} else {
		// Measured at launch so earlier sleeps and overlay writing do not eat into the run.
		window = clock.WindowFor(s.clock.Now(), r.Duration)
	}

	s.logger.Info().Str("run", r.ID).Time("deadline", window.End).Msgf("Starting %s", r.ID)
	res, err := s.runner.Run(ctx, command, window.End)
	if err != nil {
		if errors.Is(err, supervisor.ErrLaunch) {
			s.logger.Error().Err(err).Str("run", r.ID).Msgf("%s could not be launched", r.ID)
			s.recorder.LaunchFailed(r.ID)
			return nil
		}
		return err
	}
	s.recorder.RunFinished(r.ID, res.Status, res.Duration)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// configFor returns the configuration file a run should use, writing a
// derived file when the run has overrides.
func (s *Scheduler) configFor(r Run) (string, error) {
	if r.Overrides == nil {
		return s.schedule.ConfigurationFile, nil
	}
	base, err := s.baseTree()
	if err != nil {
		return "", err
	}
	derived, err := overlay.Materialize(base, r.Overrides)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", r.ID, err)
	}
	path, err := overlay.Write(s.workDir, r.ID, derivedExt(s.schedule.ConfigurationFile), derived)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", r.ID, err)
	}
	s.logger.Debug().Str("run", r.ID).Str("path", path).Msg("Wrote derived configuration")
	return path, nil
}

func (s *Scheduler) baseTree() (overlay.Tree, error) {
	if s.base != nil {
		return s.base, nil
	}
	base, err := overlay.Load(s.schedule.ConfigurationFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	s.base = base
	return base, nil
}

// derivedExt keeps the base file's YAML extension; anything else gets the default.
func derivedExt(base string) string {
	if ext := filepath.Ext(base); ext == ".yml" || ext == ".yaml" {
		return ext
	}
	return overlay.DefaultExt
}
