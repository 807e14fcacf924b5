package series

import (
	"strings"
	"time"
)

// Kind selects how a window request is resolved against the store.
type Kind int

const (
	// KindAdd anchors at the first recorded sample and expands forward.
	KindAdd Kind = iota + 1
	// KindDiff anchors at the last recorded sample and expands backward.
	KindDiff
	// KindNearest anchors at the stored sample closest to a caller timestamp.
	KindNearest
	// KindMonth covers a whole calendar month of the current year.
	KindMonth
)

// Wire tokens understood by ParseKind.
const (
	TokenAdd     = "ADD"
	TokenDiff    = "DIFF"
	TokenNearest = "FECHA"
	TokenMonth   = "MES"
	TokenTables  = "TABLA"
)

// ParseKind maps a request token to a Kind. TABLA is not a window kind and
// is rejected here; callers handle it before resolution.
func ParseKind(token string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case TokenAdd:
		return KindAdd, nil
	case TokenDiff:
		return KindDiff, nil
	case TokenNearest, "NEAREST":
		return KindNearest, nil
	case TokenMonth, "MONTH":
		return KindMonth, nil
	default:
		return 0, ErrInvalidMode
	}
}

// String returns the wire token of the kind.
func (k Kind) String() string {
	switch k {
	case KindAdd:
		return TokenAdd
	case KindDiff:
		return TokenDiff
	case KindNearest:
		return TokenNearest
	case KindMonth:
		return TokenMonth
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether the kind is one of the declared kinds.
func (k Kind) IsValid() bool {
	return k >= KindAdd && k <= KindMonth
}

// Direction is the side of the anchor a window expands to.
type Direction int

const (
	// DirectionAdd expands forward: [anchor, anchor+offset].
	DirectionAdd Direction = iota + 1
	// DirectionDiff expands backward: [anchor-offset, anchor].
	DirectionDiff
)

// String returns the direction token.
func (d Direction) String() string {
	switch d {
	case DirectionAdd:
		return TokenAdd
	case DirectionDiff:
		return TokenDiff
	default:
		return "UNKNOWN"
	}
}

// WindowRequest asks for a window of a series.
//
// Reference is only read for KindNearest, and for KindAdd/KindDiff when set
// (a zero Reference means "use the series boundary"). Month is only read
// for KindMonth. Direction is the caller's preference for KindNearest.
type WindowRequest struct {
	Series        string
	Kind          Kind
	Reference     time.Time
	Month         time.Month
	OffsetMinutes int
	Direction     Direction
}

// NewAddRequest asks for the earliest offsetMinutes of a series.
func NewAddRequest(seriesName string, offsetMinutes int) WindowRequest {
	return WindowRequest{Series: seriesName, Kind: KindAdd, OffsetMinutes: offsetMinutes, Direction: DirectionAdd}
}

// NewDiffRequest asks for the most recent offsetMinutes of a series.
func NewDiffRequest(seriesName string, offsetMinutes int) WindowRequest {
	return WindowRequest{Series: seriesName, Kind: KindDiff, OffsetMinutes: offsetMinutes, Direction: DirectionDiff}
}

// NewNearestRequest asks for a window around the stored sample nearest to reference.
// A positive signed offset expands forward, anything else expands backward.
func NewNearestRequest(seriesName string, reference time.Time, signedOffsetMinutes int) WindowRequest {
	dir := DirectionDiff
	if signedOffsetMinutes > 0 {
		dir = DirectionAdd
	}
	return WindowRequest{
		Series:        seriesName,
		Kind:          KindNearest,
		Reference:     reference,
		OffsetMinutes: abs(signedOffsetMinutes),
		Direction:     dir,
	}
}

// NewMonthRequest asks for a whole calendar month of the current year.
func NewMonthRequest(seriesName string, month time.Month) WindowRequest {
	return WindowRequest{Series: seriesName, Kind: KindMonth, Month: month, Direction: DirectionAdd}
}

// Validate checks the request shape before any store access.
func (r WindowRequest) Validate() error {
	if err := ValidateName(r.Series); err != nil {
		return err
	}
	switch r.Kind {
	case KindAdd, KindDiff:
		return nil
	case KindNearest:
		if r.Reference.IsZero() {
			return ErrMalformedRequest
		}
		if r.Direction != DirectionAdd && r.Direction != DirectionDiff {
			return ErrMalformedRequest
		}
		return nil
	case KindMonth:
		if r.Month < time.January || r.Month > time.December {
			return ErrInvalidMonth
		}
		return nil
	default:
		return ErrInvalidMode
	}
}

// Offset returns the absolute offset as a duration.
func (r WindowRequest) Offset() time.Duration {
	return time.Duration(abs(r.OffsetMinutes)) * time.Minute
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
