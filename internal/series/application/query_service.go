package application

import (
	"context"
	"errors"
	"time"

	"energy-series/internal/observability/metrics"
	series "energy-series/internal/series/domain"
)

// WindowResult is the outcome of a window query.
type WindowResult struct {
	Resolution series.Resolution
	Samples    []series.Sample
	Output     series.SeriesOutput
}

// MonthResult is the outcome of a monthly total query.
type MonthResult struct {
	Resolution series.Resolution
	Samples    int
	TotalWh    float64
	Daily      []series.DailyTotal
}

// QueryService resolves windows, reads their samples and aggregates them.
// It holds no per-request state and is safe for concurrent use.
type QueryService struct {
	resolver *Resolver
	store    SeriesStore
}

// NewQueryService constructs a QueryService.
func NewQueryService(resolver *Resolver, store SeriesStore) (*QueryService, error) {
	if resolver == nil {
		return nil, errors.New("series query: nil resolver")
	}
	if store == nil {
		return nil, errors.New("series query: nil store")
	}
	return &QueryService{resolver: resolver, store: store}, nil
}

// Window returns the power series and cumulative energy series of the resolved window.
func (s *QueryService) Window(ctx context.Context, req series.WindowRequest) (WindowResult, error) {
	start := time.Now()
	res, samples, err := s.load(ctx, req)
	if err != nil {
		metrics.ObserveWindow(req.Kind.String(), metrics.ResultError, time.Since(start), 0)
		return WindowResult{}, err
	}
	out := series.AggregateSeries(samples)
	metrics.ObserveWindow(req.Kind.String(), metrics.ResultSuccess, time.Since(start), len(samples))
	return WindowResult{Resolution: res, Samples: samples, Output: out}, nil
}

// MonthTotal returns the accumulated energy of a calendar month of the current year.
func (s *QueryService) MonthTotal(ctx context.Context, seriesName string, month time.Month) (MonthResult, error) {
	start := time.Now()
	res, samples, err := s.load(ctx, series.NewMonthRequest(seriesName, month))
	if err != nil {
		metrics.ObserveWindow(series.KindMonth.String(), metrics.ResultError, time.Since(start), 0)
		return MonthResult{}, err
	}
	total := series.AggregateMonthTotal(samples)
	metrics.ObserveWindow(series.KindMonth.String(), metrics.ResultSuccess, time.Since(start), len(samples))
	return MonthResult{Resolution: res, Samples: len(samples), TotalWh: total, Daily: series.AggregateDaily(samples)}, nil
}

// ListSeries enumerates the series known to the store.
func (s *QueryService) ListSeries(ctx context.Context) ([]string, error) {
	names, err := s.store.ListSeries(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *QueryService) load(ctx context.Context, req series.WindowRequest) (series.Resolution, []series.Sample, error) {
	res, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return series.Resolution{}, nil, err
	}
	if res.Empty {
		return res, []series.Sample{}, nil
	}
	samples, err := s.store.Range(ctx, req.Series, res.Window.Start, res.Window.End)
	if err != nil {
		return series.Resolution{}, nil, err
	}
	return res, samples, nil
}
