package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/3cpo-dev/autorun/internal/clock"
	"github.com/3cpo-dev/autorun/internal/overlay"
	"github.com/3cpo-dev/autorun/pkg/api"
)

// Run is a validated run descriptor. Exactly one of Window and Duration applies:
// Window is nil for duration runs.
type Run struct {
	ID        string
	Seq       int64
	Window    *clock.Window
	Duration  time.Duration
	Overrides overlay.Tree
}

// RunSequence extracts the numeric suffix after the last "-" of a run identifier.
func RunSequence(id string) (int64, error) {
	i := strings.LastIndex(id, "-")
	if i < 0 {
		return 0, fmt.Errorf("%w: %q has no \"-<number>\" suffix", ErrParse, id)
	}
	suffix := id[i+1:]
	if suffix == "" || strings.TrimLeft(suffix, "0123456789") != "" {
		return 0, fmt.Errorf("%w: %q has a non-numeric suffix", ErrParse, id)
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q has a non-numeric suffix", ErrParse, id)
	}
	return n, nil
}

// BuildQueue validates the run descriptors and orders them by numeric suffix.
func BuildQueue(runs map[string]api.RunSpec) ([]Run, error) {
	ids := make([]string, 0, len(runs))
	for id := range runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	queue := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := newRun(id, runs[id])
		if err != nil {
			return nil, err
		}
		queue = append(queue, r)
	}
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].Seq < queue[j].Seq })
	return queue, nil
}

func newRun(id string, spec api.RunSpec) (Run, error) {
	// The identifier names the derived configuration file.
	if strings.ContainsAny(id, `/\`) {
		return Run{}, fmt.Errorf("%w: run identifier %q contains a path separator", ErrConfig, id)
	}
	seq, err := RunSequence(id)
	if err != nil {
		return Run{}, err
	}
	r := Run{ID: id, Seq: seq, Overrides: spec.Overrides}

	t := spec.Time
	switch {
	case t == nil || (!t.HasWindow() && t.Duration == nil):
		return Run{}, fmt.Errorf("%w: run %s needs either a start/end window or a duration", ErrConfig, id)
	case t.HasWindow() && t.Duration != nil:
		return Run{}, fmt.Errorf("%w: run %s has both a window and a duration", ErrConfig, id)
	case t.Duration != nil:
		r.Duration = t.Duration.Std()
		return r, nil
	}

	if t.Start == "" || t.End == "" {
		return Run{}, fmt.Errorf("%w: run %s window needs both start and end", ErrConfig, id)
	}
	start, err := clock.ParseTimestamp(t.Start)
	if err != nil {
		return Run{}, fmt.Errorf("%w: run %s start: %w", ErrConfig, id, err)
	}
	end, err := clock.ParseTimestamp(t.End)
	if err != nil {
		return Run{}, fmt.Errorf("%w: run %s end: %w", ErrConfig, id, err)
	}
	if end.Before(start) {
		return Run{}, fmt.Errorf("%w: run %s ends before it starts", ErrConfig, id)
	}
	r.Window = &clock.Window{Start: start, End: end}
	return r, nil
}
