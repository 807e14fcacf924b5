package bus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	series "energy-series/internal/series/domain"
)

// DefaultHourCorrection is added to the time-of-day carried in "hora".
const DefaultHourCorrection = 6 * time.Hour

// record is the inbound request as published by the dashboards.
type record struct {
	Name      string  `json:"nombre"`
	Mode      string  `json:"mode"`
	Fecha     *number `json:"fecha"`
	Hora      *number `json:"hora"`
	DeltaTime *number `json:"deltatime"`
}

// number accepts a JSON number or a numeric string.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var v float64
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		v = parsed
	} else if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("not a finite number: %s", data)
	}
	*n = number(v)
	return nil
}

// Request is a decoded inbound record.
type Request struct {
	Mode   string
	Tables bool
	Window series.WindowRequest
}

// Decoder turns inbound payloads into requests.
type Decoder struct {
	Location       *time.Location
	HourCorrection time.Duration
}

// Decode parses and validates one payload. Errors wrap ErrMalformedRequest,
// ErrInvalidMode, ErrInvalidSeries or ErrInvalidMonth.
func (d Decoder) Decode(payload []byte) (Request, error) {
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Request{}, fmt.Errorf("%w: %v", series.ErrMalformedRequest, err)
	}

	mode := strings.ToUpper(strings.TrimSpace(rec.Mode))
	if mode == "" {
		return Request{}, fmt.Errorf("%w: missing mode", series.ErrMalformedRequest)
	}
	if mode == series.TokenTables {
		return Request{Mode: mode, Tables: true}, nil
	}

	kind, err := series.ParseKind(mode)
	if err != nil {
		return Request{Mode: mode}, fmt.Errorf("%w: %q", err, rec.Mode)
	}
	name := strings.TrimSpace(rec.Name)

	var req series.WindowRequest
	switch kind {
	case series.KindAdd, series.KindDiff:
		if rec.DeltaTime == nil {
			return Request{Mode: mode}, fmt.Errorf("%w: missing deltatime", series.ErrMalformedRequest)
		}
		offset := roundMinutes(float64(*rec.DeltaTime))
		if offset < 0 {
			offset = -offset
		}
		if kind == series.KindAdd {
			req = series.NewAddRequest(name, offset)
		} else {
			req = series.NewDiffRequest(name, offset)
		}
	case series.KindNearest:
		if rec.Fecha == nil || rec.Hora == nil || rec.DeltaTime == nil {
			return Request{Mode: mode}, fmt.Errorf("%w: fecha, hora and deltatime are required", series.ErrMalformedRequest)
		}
		ref := d.reference(float64(*rec.Fecha), float64(*rec.Hora))
		req = series.NewNearestRequest(name, ref, roundMinutes(float64(*rec.DeltaTime)))
	case series.KindMonth:
		if rec.Fecha == nil {
			return Request{Mode: mode}, fmt.Errorf("%w: missing fecha", series.ErrMalformedRequest)
		}
		month := float64(*rec.Fecha)
		if month != math.Trunc(month) || month < 1 || month > 12 {
			return Request{Mode: mode}, fmt.Errorf("%w: %v", series.ErrInvalidMonth, month)
		}
		req = series.NewMonthRequest(name, time.Month(int(month)))
	}

	if err := req.Validate(); err != nil {
		return Request{Mode: mode}, err
	}
	return Request{Mode: mode, Window: req}, nil
}

// reference combines the calendar date of fecha with the corrected time of day of hora.
func (d Decoder) reference(fechaMillis, horaMillis float64) time.Time {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	date := time.UnixMilli(int64(math.Floor(fechaMillis))).In(loc)
	hour := time.UnixMilli(int64(math.Floor(horaMillis))).In(loc).Add(d.HourCorrection)
	return time.Date(date.Year(), date.Month(), date.Day(), hour.Hour(), hour.Minute(), hour.Second(), 0, loc)
}

func roundMinutes(v float64) int {
	return int(math.RoundToEven(v))
}
