package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/shlex"
	"github.com/rs/zerolog"

	"github.com/3cpo-dev/autorun/internal/clock"
	"github.com/3cpo-dev/autorun/pkg/api"
)

// DefaultPollInterval bounds the delay between the deadline passing and the
// termination signal being sent.
const DefaultPollInterval = 100 * time.Millisecond

// ErrLaunch is returned when the command could not be started.
var ErrLaunch = errors.New("process could not be launched")

// Handle is a live child process.
type Handle struct {
	Command string
	PID     int
	State   State

	termSentAt time.Time
	killSent   bool
	// interrupted is set when termination was requested by context cancellation
	// rather than by the deadline.
	interrupted bool
}

// Result describes how a supervised process ended.
type Result struct {
	Command  string
	PID      int
	Status   api.TerminalStatus
	ExitCode int
	Signal   string
	Duration time.Duration
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Logger       zerolog.Logger
	Clock        clock.Clock
	PollInterval time.Duration
	// KillAfter, when positive, sends SIGKILL this long after the deadline
	// SIGTERM if the process is still alive. Zero waits indefinitely.
	KillAfter time.Duration
	// Dir is the working directory of the child. Empty means inherit.
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Supervisor launches commands and enforces their deadlines.
type Supervisor struct {
	logger    zerolog.Logger
	clock     clock.Clock
	poll      time.Duration
	killAfter time.Duration
	dir       string
	stdout    io.Writer
	stderr    io.Writer
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	s := &Supervisor{
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		poll:      cfg.PollInterval,
		killAfter: cfg.KillAfter,
		dir:       cfg.Dir,
		stdout:    cfg.Stdout,
		stderr:    cfg.Stderr,
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.poll <= 0 {
		s.poll = DefaultPollInterval
	}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	return s
}

// Run launches command and blocks until it exits. Once the clock passes
// deadline the process group receives SIGTERM, once, and the supervisor keeps
// waiting for the exit. Cancelling ctx requests the same termination early.
// The only error is ErrLaunch; every exit outcome is reported in the Result.
func (s *Supervisor) Run(ctx context.Context, command string, deadline time.Time) (Result, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return Result{Command: command}, fmt.Errorf("%w: parse %q: %v", ErrLaunch, command, err)
	}
	if len(args) == 0 {
		return Result{Command: command}, fmt.Errorf("%w: empty command", ErrLaunch)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = s.dir
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	// Own process group so termination reaches wrapper scripts and their children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	started := s.clock.Now()
	if err := cmd.Start(); err != nil {
		s.logger.Error().Err(err).Str("cmd", command).Msgf("Command '%s' could not be started", command)
		return Result{Command: command}, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	h := &Handle{Command: command, PID: cmd.Process.Pid, State: StateLaunched}
	s.logger.Info().Str("cmd", command).Int("pid", h.PID).
		Time("deadline", deadline).
		Msgf("Command '%s' started with pid %d", command, h.PID)

	done := make(chan struct{})
	go func() {
		// Wait errors other than the exit status itself are I/O copy errors;
		// the exit is read from ProcessState.
		_ = cmd.Wait()
		close(done)
	}()

	s.watch(ctx, cmd, h, deadline, done)

	res := classify(h, cmd.ProcessState)
	res.Duration = s.clock.Now().Sub(started)
	s.report(res)
	return res, nil
}

// watch polls the process until done is closed.
func (s *Supervisor) watch(ctx context.Context, cmd *exec.Cmd, h *Handle, deadline time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	h.State = StateRunning
	ctxDone := ctx.Done()
	for {
		select {
		case <-done:
			h.State = StateTerminal
			return
		case <-ctxDone:
			ctxDone = nil
			if h.State != StateDeadlineExceeded {
				h.interrupted = true
				s.logger.Warn().Int("pid", h.PID).Msg("Stop requested, terminating running command")
				s.terminate(cmd, h)
			}
		case <-ticker.C:
			now := s.clock.Now()
			switch {
			case h.State == StateRunning && now.After(deadline):
				s.logger.Debug().Int("pid", h.PID).Time("deadline", deadline).Msg("Deadline passed, sending SIGTERM")
				s.terminate(cmd, h)
			case h.State == StateDeadlineExceeded && s.killAfter > 0 && !h.killSent &&
				now.Sub(h.termSentAt) >= s.killAfter:
				s.logger.Warn().Int("pid", h.PID).Dur("kill_after", s.killAfter).Msg("Command ignored SIGTERM, sending SIGKILL")
				signalGroup(cmd, syscall.SIGKILL)
				h.killSent = true
			}
		}
	}
}

func (s *Supervisor) terminate(cmd *exec.Cmd, h *Handle) {
	signalGroup(cmd, syscall.SIGTERM)
	h.State = StateDeadlineExceeded
	h.termSentAt = s.clock.Now()
}

// signalGroup signals the process group, falling back to the process alone.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		if err := syscall.Kill(-pgid, sig); err == nil {
			return
		}
	}
	_ = cmd.Process.Signal(sig)
}

// classify maps the exit of a process to a terminal status.
func classify(h *Handle, ps *os.ProcessState) Result {
	res := Result{Command: h.Command, PID: h.PID}
	if ps == nil {
		res.Status = api.StatusFailed
		res.ExitCode = -1
		return res
	}
	res.ExitCode = ps.ExitCode()
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := ws.Signal()
		res.Signal = signalName(sig)
		res.ExitCode = -int(sig)
		sentTerm := !h.termSentAt.IsZero()
		switch {
		case sig == syscall.SIGTERM && sentTerm && h.interrupted,
			sig == syscall.SIGKILL && h.killSent && h.interrupted:
			res.Status = api.StatusInterrupted
		case sig == syscall.SIGTERM && sentTerm, sig == syscall.SIGKILL && h.killSent:
			res.Status = api.StatusTimeout
		default:
			res.Status = api.StatusSignaled
		}
		return res
	}
	if res.ExitCode == 0 {
		res.Status = api.StatusExited
	} else {
		res.Status = api.StatusFailed
	}
	return res
}

func (s *Supervisor) report(res Result) {
	switch res.Status {
	case api.StatusExited:
		s.logger.Info().Str("cmd", res.Command).Int("pid", res.PID).Str("status", string(res.Status)).
			Dur("duration", res.Duration).
			Msgf("Command '%s' with pid %d ended with return code 0", res.Command, res.PID)
	case api.StatusTimeout:
		s.logger.Warn().Str("cmd", res.Command).Int("pid", res.PID).Str("status", string(res.Status)).
			Str("signal", res.Signal).Dur("duration", res.Duration).
			Msgf("Command '%s' with pid %d was sent %s signal at the end of its window", res.Command, res.PID, res.Signal)
	case api.StatusInterrupted:
		s.logger.Warn().Str("cmd", res.Command).Int("pid", res.PID).Str("status", string(res.Status)).
			Str("signal", res.Signal).Dur("duration", res.Duration).
			Msgf("Command '%s' with pid %d was interrupted with %s signal", res.Command, res.PID, res.Signal)
	case api.StatusSignaled:
		s.logger.Warn().Str("cmd", res.Command).Int("pid", res.PID).Str("status", string(res.Status)).
			Str("signal", res.Signal).Dur("duration", res.Duration).
			Msgf("Command '%s' with pid %d was killed by %s signal", res.Command, res.PID, res.Signal)
	default:
		s.logger.Error().Str("cmd", res.Command).Int("pid", res.PID).Str("status", string(res.Status)).
			Int("code", res.ExitCode).Dur("duration", res.Duration).
			Msgf("Command '%s' with pid %d failed with return code %d", res.Command, res.PID, res.ExitCode)
	}
}

func signalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGQUIT:
		return "SIGQUIT"
	case syscall.SIGABRT:
		return "SIGABRT"
	case syscall.SIGSEGV:
		return "SIGSEGV"
	default:
		return sig.String()
	}
}
