// Package core loads schedules and drives the run queue.
package core

import (
	"context"
	"time"

	"github.com/3cpo-dev/autorun/internal/supervisor"
	"github.com/3cpo-dev/autorun/pkg/api"
)

// Runner executes one command until it exits or its deadline forces it to.
// *supervisor.Supervisor is the production implementation.
type Runner interface {
	Run(ctx context.Context, command string, deadline time.Time) (supervisor.Result, error)
}

// Recorder is notified of every run outcome.
type Recorder interface {
	RunFinished(runID string, status api.TerminalStatus, d time.Duration)
	RunSkipped(runID string)
	LaunchFailed(runID string)
}

type nopRecorder struct{}

func (nopRecorder) RunFinished(string, api.TerminalStatus, time.Duration) {}
func (nopRecorder) RunSkipped(string)                                      {}
func (nopRecorder) LaunchFailed(string)                                    {}
