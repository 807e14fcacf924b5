package series

import "time"

// DefaultNearestTolerance is the half-width of the nearest-sample search.
const DefaultNearestTolerance = 15 * time.Minute

// Window is a closed timestamp interval [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// IsDegenerate reports a zero-length window.
func (w Window) IsDegenerate() bool { return w.Start.Equal(w.End) }

// Contains reports whether t lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Resolution is the outcome of resolving a WindowRequest.
type Resolution struct {
	Series    string
	Kind      Kind
	Anchor    time.Time
	Direction Direction
	Offset    time.Duration
	Window    Window
	// Empty is set when the series has no recorded samples.
	Empty bool
}

// Expand computes the window from an anchor, a direction and an offset.
// Negative offsets are treated as their absolute value.
func Expand(anchor time.Time, dir Direction, offset time.Duration) Window {
	if offset < 0 {
		offset = -offset
	}
	if dir == DirectionDiff {
		return Window{Start: anchor.Add(-offset), End: anchor}
	}
	return Window{Start: anchor, End: anchor.Add(offset)}
}

// CorrectDirection forces the direction when a resolved anchor landed on a
// series boundary: the first sample can only expand forward and the last
// sample only backward. The first boundary wins when both coincide.
func CorrectDirection(anchor time.Time, first, last Boundary, requested Direction) Direction {
	switch {
	case anchor.Equal(first.At):
		return DirectionAdd
	case anchor.Equal(last.At):
		return DirectionDiff
	default:
		return requested
	}
}

// MonthWindow returns [first day of month 00:00, first day of next month 00:00]
// in loc, rolling December over into January of the next year.
func MonthWindow(year int, month time.Month, loc *time.Location) (Window, error) {
	if month < time.January || month > time.December {
		return Window{}, ErrInvalidMonth
	}
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	nextYear, nextMonth := year, month+1
	if nextMonth > time.December {
		nextYear, nextMonth = year+1, time.January
	}
	end := time.Date(nextYear, nextMonth, 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: end}, nil
}
