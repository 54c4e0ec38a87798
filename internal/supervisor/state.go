// Package supervisor runs a single external command under a wall-clock deadline.
package supervisor

// State is the lifecycle state of a supervised process.
type State int

const (
	// StateLaunched means the process was started but not yet observed.
	StateLaunched State = iota

	// StateRunning means the poll loop is watching the process.
	StateRunning

	// StateDeadlineExceeded means the graceful termination signal has been sent.
	StateDeadlineExceeded

	// StateTerminal means the process has exited and its status is recorded.
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateLaunched:
		return "launched"
	case StateRunning:
		return "running"
	case StateDeadlineExceeded:
		return "deadline-exceeded"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once the process has exited.
func (s State) IsTerminal() bool {
	return s == StateTerminal
}
