package series

import (
	"encoding/json"
	"time"
)

// EnergyDivisor converts stored raw energy units into watt-hours.
const EnergyDivisor = 3.6e6

const (
	timestampLayout      = "2006-01-02 15:04:05"
	timestampLayoutMicro = "2006-01-02 15:04:05.000000"
)

// OutputPoint is one element of a published power or energy series.
type OutputPoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// SeriesOutput holds the paired power and cumulative energy series.
type SeriesOutput struct {
	Power  []OutputPoint
	Energy []OutputPoint
}

// FormatTimestamp renders a sample timestamp as "YYYY-MM-DD HH:MM:SS",
// appending microseconds only when they are non-zero.
func FormatTimestamp(t time.Time) string {
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		return t.Format(timestampLayoutMicro)
	}
	return t.Format(timestampLayout)
}

// AggregateSeries emits the power series and the running energy total.
// Both slices are non-nil and have one point per sample.
func AggregateSeries(samples []Sample) SeriesOutput {
	out := SeriesOutput{
		Power:  make([]OutputPoint, 0, len(samples)),
		Energy: make([]OutputPoint, 0, len(samples)),
	}
	var acc float64
	for _, sample := range samples {
		acc += sample.Energy / EnergyDivisor
		x := FormatTimestamp(sample.At)
		out.Power = append(out.Power, OutputPoint{X: x, Y: sample.Power})
		out.Energy = append(out.Energy, OutputPoint{X: x, Y: acc})
	}
	return out
}

// AggregateMonthTotal returns the accumulated energy of the samples in watt-hours.
func AggregateMonthTotal(samples []Sample) float64 {
	var acc float64
	for _, sample := range samples {
		acc += sample.Energy / EnergyDivisor
	}
	return acc
}

// EncodePoints encodes points as a JSON array; nil encodes as [].
func EncodePoints(points []OutputPoint) ([]byte, error) {
	if points == nil {
		points = []OutputPoint{}
	}
	return json.Marshal(points)
}

// DailyTotal is the energy accumulated over one calendar day of a window.
type DailyTotal struct {
	Day      time.Time
	Samples  int
	EnergyWh float64
}

// AggregateDaily groups ordered samples by the calendar day of their
// timestamp. Days without samples are omitted.
func AggregateDaily(samples []Sample) []DailyTotal {
	out := make([]DailyTotal, 0)
	for _, sample := range samples {
		y, m, d := sample.At.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, sample.At.Location())
		if n := len(out); n == 0 || !out[n-1].Day.Equal(day) {
			out = append(out, DailyTotal{Day: day})
		}
		last := &out[len(out)-1]
		last.Samples++
		last.EnergyWh += sample.Energy / EnergyDivisor
	}
	return out
}
