package application

import (
	"context"
	"time"

	series "energy-series/internal/series/domain"
)

// SeriesStore is the read-only store accessor the engine resolves windows against.
// Implementations must be safe for concurrent use.
type SeriesStore interface {
	// Boundary returns the first or last recorded timestamp. An empty series
	// yields a non-recorded boundary at the start of the current day.
	Boundary(ctx context.Context, seriesName string, edge series.Edge) (series.Boundary, error)
	// Range returns samples in [start, end] ordered by timestamp ascending.
	Range(ctx context.Context, seriesName string, start, end time.Time) ([]series.Sample, error)
	// Nearest scans [reference-tolerance, reference+tolerance] ascending and returns
	// the first timestamp not after reference, falling back to the last boundary.
	Nearest(ctx context.Context, seriesName string, reference time.Time, tolerance time.Duration) (time.Time, error)
	// ListSeries enumerates the series names known to the store.
	ListSeries(ctx context.Context) ([]string, error)
}
