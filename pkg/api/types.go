package api

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// v0 contains the public schedule schema.

// Placeholder is replaced in Schedule.Cmd with the path of the run's configuration file.
const Placeholder = "{configuration-file}"

type Schedule struct {
	Logging           *LoggingSpec       `json:"logging" yaml:"logging"`
	ConfigurationFile string             `json:"configuration-file" yaml:"configuration-file"`
	Cmd               string             `json:"cmd" yaml:"cmd"`
	KillAfter         Duration           `json:"kill-after" yaml:"kill-after"`
	Runs              map[string]RunSpec `json:"runs" yaml:"runs"`
}

type LoggingSpec struct {
	Level string `json:"level" yaml:"level"`
	// Directory receives a timestamped log file; empty or null logs to stdout.
	Directory string `json:"directory" yaml:"directory"`
}

type RunSpec struct {
	Time *TimeSpec `json:"time" yaml:"time"`
	// Overrides is nil when the run uses the base configuration file untouched.
	Overrides map[string]any `json:"new-parameters" yaml:"new-parameters"`
}

// TimeSpec is either an explicit window (Start and End) or a bare Duration.
// In YAML a scalar is a duration and a mapping is a window.
type TimeSpec struct {
	Start    string    `json:"start,omitempty"`
	End      string    `json:"end,omitempty"`
	Duration *Duration `json:"duration,omitempty"`
}

func (t *TimeSpec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var d Duration
		if err := d.UnmarshalYAML(n); err != nil {
			return err
		}
		t.Duration = &d
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			switch k.Value {
			case "start", "end":
				if v.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: time.%s must be a timestamp", v.Line, k.Value)
				}
				if k.Value == "start" {
					t.Start = v.Value
				} else {
					t.End = v.Value
				}
			case "duration":
				var d Duration
				if err := d.UnmarshalYAML(v); err != nil {
					return err
				}
				t.Duration = &d
			default:
				return fmt.Errorf("line %d: unknown time key %q", k.Line, k.Value)
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: time must be a duration or a start/end mapping", n.Line)
	}
}

// HasWindow reports whether any part of an explicit window was given.
func (t TimeSpec) HasWindow() bool { return t.Start != "" || t.End != "" }

// Duration accepts plain seconds (integer or fractional) or a Go duration string.
type Duration time.Duration

// maxDurationSeconds is the first value of seconds that overflows time.Duration.
const maxDurationSeconds = float64(math.MaxInt64) / float64(time.Second)

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", n.Line)
	}
	if secs, err := strconv.ParseFloat(n.Value, 64); err == nil {
		switch {
		case math.IsNaN(secs) || math.IsInf(secs, 0):
			return fmt.Errorf("line %d: duration %q is not a finite number", n.Line, n.Value)
		case secs < 0:
			return fmt.Errorf("line %d: negative duration %q", n.Line, n.Value)
		case secs >= maxDurationSeconds:
			return fmt.Errorf("line %d: duration %q is too large", n.Line, n.Value)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", n.Line, n.Value)
	}
	if v < 0 {
		return fmt.Errorf("line %d: negative duration %q", n.Line, n.Value)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// TerminalStatus classifies how a supervised process ended.
type TerminalStatus string

const (
	StatusRunning     TerminalStatus = "running"
	StatusExited      TerminalStatus = "exited-cleanly"
	StatusTimeout     TerminalStatus = "terminated-by-timeout"
	StatusSignaled    TerminalStatus = "terminated-by-signal"
	StatusFailed      TerminalStatus = "exited-with-error"
	StatusInterrupted TerminalStatus = "interrupted"
)

// Statuses lists every terminal status, in reporting order.
var Statuses = []TerminalStatus{StatusExited, StatusTimeout, StatusSignaled, StatusFailed, StatusInterrupted}
