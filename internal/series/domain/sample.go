package series

import (
	"regexp"
	"time"
)

// Sample is one recorded measurement of a series.
type Sample struct {
	At     time.Time
	Power  float64
	Energy float64
}

// Edge selects the first or last recorded timestamp of a series.
type Edge int

const (
	// EdgeFirst is the earliest recorded sample.
	EdgeFirst Edge = iota + 1
	// EdgeLast is the most recent recorded sample.
	EdgeLast
)

// String returns the edge name.
func (e Edge) String() string {
	switch e {
	case EdgeFirst:
		return "first"
	case EdgeLast:
		return "last"
	default:
		return "unknown"
	}
}

// Boundary is the first or last timestamp of a series.
// When Recorded is false the series holds no samples and At is the
// start-of-day sentinel.
type Boundary struct {
	At       time.Time
	Recorded bool
}

// EmptyBoundary builds the "no data" boundary for the day containing now.
func EmptyBoundary(now time.Time) Boundary {
	return Boundary{At: StartOfDay(now)}
}

var seriesNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateName checks that a series name is a plain identifier usable as a table name.
func ValidateName(name string) error {
	if !seriesNamePattern.MatchString(name) {
		return ErrInvalidSeries
	}
	return nil
}
