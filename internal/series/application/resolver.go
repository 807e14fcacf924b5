package application

import (
	"context"
	"errors"
	"time"

	series "energy-series/internal/series/domain"
)

// Resolver turns a WindowRequest into a concrete store-backed window.
type Resolver struct {
	store     SeriesStore
	clock     series.Clock
	location  *time.Location
	tolerance time.Duration
}

// ResolverOption configures the resolver.
type ResolverOption func(*Resolver)

// WithClock overrides the clock used for month windows.
func WithClock(clock series.Clock) ResolverOption {
	return func(r *Resolver) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLocation sets the location month boundaries are computed in.
func WithLocation(loc *time.Location) ResolverOption {
	return func(r *Resolver) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithTolerance overrides the nearest-sample search half-width.
func WithTolerance(tolerance time.Duration) ResolverOption {
	return func(r *Resolver) {
		if tolerance > 0 {
			r.tolerance = tolerance
		}
	}
}

// NewResolver constructs a Resolver.
func NewResolver(store SeriesStore, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("series resolver: nil store")
	}
	r := &Resolver{
		store:     store,
		clock:     series.SystemClock{},
		location:  time.Local,
		tolerance: series.DefaultNearestTolerance,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve computes the window for a request.
func (r *Resolver) Resolve(ctx context.Context, req series.WindowRequest) (series.Resolution, error) {
	if err := req.Validate(); err != nil {
		return series.Resolution{}, err
	}
	switch req.Kind {
	case series.KindAdd:
		return r.resolveFromBoundary(ctx, req, series.EdgeFirst, series.DirectionAdd)
	case series.KindDiff:
		return r.resolveFromBoundary(ctx, req, series.EdgeLast, series.DirectionDiff)
	case series.KindNearest:
		return r.resolveNearest(ctx, req)
	case series.KindMonth:
		return r.resolveMonth(req)
	default:
		return series.Resolution{}, series.ErrInvalidMode
	}
}

func (r *Resolver) resolveFromBoundary(ctx context.Context, req series.WindowRequest, edge series.Edge, dir series.Direction) (series.Resolution, error) {
	res := series.Resolution{Series: req.Series, Kind: req.Kind, Direction: dir, Offset: req.Offset()}
	if !req.Reference.IsZero() {
		res.Anchor = req.Reference
		res.Window = series.Expand(res.Anchor, dir, res.Offset)
		return res, nil
	}

	boundary, err := r.store.Boundary(ctx, req.Series, edge)
	if err != nil {
		return series.Resolution{}, err
	}
	res.Anchor = boundary.At
	if !boundary.Recorded {
		return collapse(res), nil
	}
	res.Window = series.Expand(res.Anchor, dir, res.Offset)
	return res, nil
}

func (r *Resolver) resolveNearest(ctx context.Context, req series.WindowRequest) (series.Resolution, error) {
	first, err := r.store.Boundary(ctx, req.Series, series.EdgeFirst)
	if err != nil {
		return series.Resolution{}, err
	}
	last, err := r.store.Boundary(ctx, req.Series, series.EdgeLast)
	if err != nil {
		return series.Resolution{}, err
	}

	var anchor time.Time
	switch {
	case !req.Reference.After(first.At):
		anchor = first.At
	case !req.Reference.Before(last.At):
		anchor = last.At
	default:
		anchor, err = r.store.Nearest(ctx, req.Series, req.Reference, r.tolerance)
		if err != nil {
			return series.Resolution{}, err
		}
	}

	res := series.Resolution{
		Series:    req.Series,
		Kind:      req.Kind,
		Anchor:    anchor,
		Direction: series.CorrectDirection(anchor, first, last, req.Direction),
		Offset:    req.Offset(),
	}
	if !first.Recorded {
		return collapse(res), nil
	}
	res.Window = series.Expand(anchor, res.Direction, res.Offset)
	return res, nil
}

func (r *Resolver) resolveMonth(req series.WindowRequest) (series.Resolution, error) {
	year := r.clock.Now().In(r.location).Year()
	window, err := series.MonthWindow(year, req.Month, r.location)
	if err != nil {
		return series.Resolution{}, err
	}
	return series.Resolution{
		Series:    req.Series,
		Kind:      req.Kind,
		Anchor:    window.Start,
		Direction: series.DirectionAdd,
		Offset:    window.Duration(),
		Window:    window,
	}, nil
}

// collapse turns a resolution over an empty series into a zero-length window at the sentinel.
func collapse(res series.Resolution) series.Resolution {
	res.Empty = true
	res.Window = series.Window{Start: res.Anchor, End: res.Anchor}
	return res
}
