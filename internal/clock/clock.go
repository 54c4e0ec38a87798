// Package clock holds the wall-clock abstraction and timestamp helpers used to
// resolve run windows.
package clock

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Layout is the timestamp layout used by schedule files (DD-MM-YYYY HH:MM:SS).
const Layout = "02-01-2006 15:04:05"

// Clock is the source of time for the scheduler and the supervisor.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// System is the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// EpochSeconds returns the number of seconds since 1970-01-01 00:00:00 UTC.
func EpochSeconds(t time.Time) float64 {
	return t.Sub(epoch).Seconds()
}

// FromEpochSeconds is the inverse of EpochSeconds.
func FromEpochSeconds(s float64) time.Time {
	return epoch.Add(time.Duration(s * float64(time.Second))).Local()
}

// ParseTimestamp parses a schedule timestamp. Accepted forms are Layout in the
// local time zone, RFC 3339, and bare epoch seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(Layout, s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		// time.Duration only spans about 292 years either side of the epoch.
		if math.IsNaN(secs) || math.Abs(secs) >= float64(math.MaxInt64)/float64(time.Second) {
			return time.Time{}, fmt.Errorf("epoch timestamp %q out of range", s)
		}
		return FromEpochSeconds(secs), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q (want %q or RFC 3339)", s, Layout)
}

// Window is a resolved execution window.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFor returns a window starting at now and lasting d.
func WindowFor(now time.Time, d time.Duration) Window {
	return Window{Start: now, End: now.Add(d)}
}

// Passed reports whether now is strictly after the end of the window.
func (w Window) Passed(now time.Time) bool { return now.After(w.End) }

// Pending reports whether now is before the start of the window.
func (w Window) Pending(now time.Time) bool { return now.Before(w.Start) }

func (w Window) Contains(now time.Time) bool { return !w.Pending(now) && !w.Passed(now) }

func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format(Layout), w.End.Format(Layout))
}
