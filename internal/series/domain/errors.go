package series

import "errors"

var (
	// ErrInvalidMode is returned when a request names an unknown resolution mode.
	ErrInvalidMode = errors.New("series: invalid mode")
	// ErrMalformedRequest is returned when a request is missing fields or carries non-numeric values.
	ErrMalformedRequest = errors.New("series: malformed request")
	// ErrInvalidSeries is returned when a series name is empty or not a plain identifier.
	ErrInvalidSeries = errors.New("series: invalid series name")
	// ErrInvalidMonth is returned when a month index is outside 1..12.
	ErrInvalidMonth = errors.New("series: invalid month")
	// ErrStoreUnavailable is returned when the store cannot complete a query.
	ErrStoreUnavailable = errors.New("series: store unavailable")
)
