package supervisor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/3cpo-dev/autorun/pkg/api"
)

func newTestSupervisor(buf *bytes.Buffer, killAfter time.Duration) *Supervisor {
	return New(Config{
		Logger:       zerolog.New(buf).Level(zerolog.DebugLevel),
		PollInterval: 20 * time.Millisecond,
		KillAfter:    killAfter,
		Stdout:       io.Discard,
		Stderr:       io.Discard,
	})
}

func TestRunExitsCleanly(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSupervisor(&buf, 0)

	res, err := s.Run(context.Background(), "true", time.Now().Add(5*time.Second))
	require.NoError(t, err)
	require.Equal(t, api.StatusExited, res.Status)
	require.Equal(t, 0, res.ExitCode)
	require.NotZero(t, res.PID)
	require.Contains(t, buf.String(), "ended with return code 0")
	require.Contains(t, buf.String(), "started with pid")
}

func TestRunExitCode(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSupervisor(&buf, 0)

	res, err := s.Run(context.Background(), "sh -c 'exit 3'", time.Now().Add(5*time.Second))
	require.NoError(t, err)
	require.Equal(t, api.StatusFailed, res.Status)
	require.Equal(t, 3, res.ExitCode)
	require.Contains(t, buf.String(), "failed with return code 3")
	require.Contains(t, buf.String(), `"level":"error"`)
}

func TestRunDeadlineTerminates(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSupervisor(&buf, 0)

	start := time.Now()
	res, err := s.Run(context.Background(), "sleep 10", start.Add(200*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, api.StatusTimeout, res.Status)
	require.Equal(t, "SIGTERM", res.Signal)
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Contains(t, buf.String(), "was sent SIGTERM signal")
	require.Contains(t, buf.String(), `"level":"warn"`)
}

func TestRunWaitsForProcessIgnoringSIGTERM(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSupervisor(&buf, 0)

	start := time.Now()
	res, err := s.Run(context.Background(), `sh -c 'trap "" TERM; sleep 1'`, start.Add(200*time.Millisecond))
	require.NoError(t, err)
	// The child survives the signal and finishes its own work.
	require.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
	require.Equal(t, api.StatusExited, res.Status)
	require.Equal(t, 1, strings.Count(buf.String(), "Deadline passed"), "SIGTERM must be sent once")
}

func TestRunKillAfterEscalates(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSupervisor(&buf, 200*time.Millisecond)

	start := time.Now()
	res, err := s.Run(context.Background(), `sh -c 'trap "" TERM; sleep 10'`, start.Add(200*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, api.StatusTimeout, res.Status)
	require.Equal(t, "SIGKILL", res.Signal)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRunExternalKillIsSignaled(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSupervisor(&buf, 0)

	res, err := s.Run(context.Background(), `sh -c 'kill -KILL $$'`, time.Now().Add(5*time.Second))
	require.NoError(t, err)
	require.Equal(t, api.StatusSignaled, res.Status)
	require.Equal(t, "SIGKILL", res.Signal)
	require.Contains(t, buf.String(), "was killed by SIGKILL signal")
}

func TestRunContextCancelInterrupts(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSupervisor(&buf, 0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	res, err := s.Run(ctx, "sleep 10", start.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, api.StatusInterrupted, res.Status)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRunLaunchErrors(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSupervisor(&buf, 0)

	for _, command := range []string{"/nonexistent/autorun-binary", "", `echo "unterminated`} {
		_, err := s.Run(context.Background(), command, time.Now().Add(time.Second))
		require.Error(t, err, "command %q", command)
		require.True(t, errors.Is(err, ErrLaunch))
	}
}

func TestStateString(t *testing.T) {
	require.Equal(t, "deadline-exceeded", StateDeadlineExceeded.String())
	require.True(t, StateTerminal.IsTerminal())
	require.False(t, StateRunning.IsTerminal())
	require.Equal(t, "unknown", State(42).String())
}
