package sqlstore

import (
	"fmt"
	"time"
)

const storeTimeLayout = "2006-01-02 15:04:05.999999"

var parseLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02",
}

// formatStoreTime renders t as wall-clock text in loc, the form series tables store.
func formatStoreTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(storeTimeLayout)
}

// wallClock scans a DATETIME/timestamp column as wall-clock time in loc.
// Drivers hand back time.Time (pgx, mysql with parseTime) or raw text (mysql).
type wallClock struct {
	loc   *time.Location
	t     time.Time
	valid bool
}

func (w *wallClock) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		w.valid = false
		return nil
	case time.Time:
		w.t = reanchor(v, w.loc)
	case []byte:
		return w.parse(string(v))
	case string:
		return w.parse(v)
	default:
		return fmt.Errorf("sqlstore: unsupported timestamp type %T", src)
	}
	w.valid = true
	return nil
}

func (w *wallClock) parse(text string) error {
	for _, layout := range parseLayouts {
		if parsed, err := time.ParseInLocation(layout, text, w.loc); err == nil {
			w.t = parsed
			w.valid = true
			return nil
		}
	}
	return fmt.Errorf("sqlstore: invalid timestamp %q", text)
}

func reanchor(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
