package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	series "energy-series/internal/series/domain"
)

// Store is an in-memory store accessor for demo/testing.
type Store struct {
	mu     sync.RWMutex
	series map[string][]series.Sample
	clock  series.Clock
}

// Option configures the store.
type Option func(*Store)

// WithClock sets the clock used for the empty-series sentinel.
func WithClock(clock series.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		series: make(map[string][]series.Sample),
		clock:  series.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a series without samples.
func (s *Store) Create(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.series[name]; !ok {
		s.series[name] = nil
	}
}

// Append adds samples to a series, keeping timestamp order. Slices handed out
// to readers are never modified.
func (s *Store) Append(name string, samples ...series.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.series[name]
	list := make([]series.Sample, 0, len(current)+len(samples))
	list = append(list, current...)
	list = append(list, samples...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].At.Before(list[j].At) })
	s.series[name] = list
}

// Boundary returns the first or last recorded timestamp.
func (s *Store) Boundary(ctx context.Context, name string, edge series.Edge) (series.Boundary, error) {
	_ = ctx
	list, err := s.get(name)
	if err != nil {
		return series.Boundary{}, err
	}
	if len(list) == 0 {
		return series.EmptyBoundary(s.clock.Now()), nil
	}
	switch edge {
	case series.EdgeFirst:
		return series.Boundary{At: list[0].At, Recorded: true}, nil
	case series.EdgeLast:
		return series.Boundary{At: list[len(list)-1].At, Recorded: true}, nil
	default:
		return series.Boundary{}, fmt.Errorf("memory store: unknown edge %d", edge)
	}
}

// Range returns samples in [start, end] ordered by timestamp.
func (s *Store) Range(ctx context.Context, name string, start, end time.Time) ([]series.Sample, error) {
	_ = ctx
	list, err := s.get(name)
	if err != nil {
		return nil, err
	}
	window := series.Window{Start: start, End: end}
	result := make([]series.Sample, 0)
	for _, sample := range list {
		if window.Contains(sample.At) {
			result = append(result, sample)
		}
	}
	return result, nil
}

// Nearest returns the first sample in the tolerance window not after reference,
// or the last boundary when there is none.
func (s *Store) Nearest(ctx context.Context, name string, reference time.Time, tolerance time.Duration) (time.Time, error) {
	candidates, err := s.Range(ctx, name, reference.Add(-tolerance), reference.Add(tolerance))
	if err != nil {
		return time.Time{}, err
	}
	for _, sample := range candidates {
		if reference.Sub(sample.At) >= 0 {
			return sample.At, nil
		}
	}
	last, err := s.Boundary(ctx, name, series.EdgeLast)
	if err != nil {
		return time.Time{}, err
	}
	return last.At, nil
}

// ListSeries returns the registered series names in lexical order.
func (s *Store) ListSeries(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) get(name string) ([]series.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.series[name]
	if !ok {
		return nil, fmt.Errorf("%w: memory store: unknown series %q", series.ErrStoreUnavailable, name)
	}
	return list, nil
}
