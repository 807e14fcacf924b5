package series

import "time"

// Clock provides time for window resolution.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall-clock time in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock location.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// StartOfDay returns 00:00:00 of the day containing t, in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
