package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"energy-series/internal/observability/metrics"
	series "energy-series/internal/series/domain"
)

// Store reads series tables through database/sql. Each series is a table
// holding one row per sample.
type Store struct {
	db       *sql.DB
	queries  queries
	clock    series.Clock
	location *time.Location
}

// Option configures the store.
type Option func(*Store)

// WithColumns overrides the sample column names.
func WithColumns(columns Columns) Option {
	return func(s *Store) {
		if columns.Time != "" && columns.Power != "" && columns.Energy != "" {
			s.queries.columns = columns
		}
	}
}

// WithLocation sets the location stored wall-clock timestamps belong to.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the clock used for the empty-series sentinel.
func WithClock(clock series.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a store for the given dialect.
func New(db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: nil db")
	}
	if dialect != DialectPostgres && dialect != DialectMySQL {
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
	s := &Store{
		db:       db,
		queries:  queries{dialect: dialect, columns: DefaultColumns},
		clock:    series.SystemClock{},
		location: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.queries.columns.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Boundary returns MIN or MAX of the timestamp column. An empty table yields
// the start-of-day sentinel with Recorded unset.
func (s *Store) Boundary(ctx context.Context, name string, edge series.Edge) (series.Boundary, error) {
	if err := series.ValidateName(name); err != nil {
		return series.Boundary{}, err
	}
	fn := "MIN"
	switch edge {
	case series.EdgeFirst:
	case series.EdgeLast:
		fn = "MAX"
	default:
		return series.Boundary{}, fmt.Errorf("sqlstore: unknown edge %d", edge)
	}

	op := "boundary_" + edge.String()
	start := time.Now()
	ts := wallClock{loc: s.location}
	err := s.db.QueryRowContext(ctx, s.queries.boundary(name, fn)).Scan(&ts)
	observe(op, start, err)
	if err != nil {
		return series.Boundary{}, unavailable(op, name, err)
	}
	if !ts.valid {
		return series.EmptyBoundary(s.clock.Now().In(s.location)), nil
	}
	return series.Boundary{At: ts.t, Recorded: true}, nil
}

// Range returns samples with timestamps in [start, end], ordered ascending.
// Rows with NULL power or energy are skipped.
func (s *Store) Range(ctx context.Context, name string, start, end time.Time) ([]series.Sample, error) {
	if err := series.ValidateName(name); err != nil {
		return nil, err
	}

	began := time.Now()
	samples, err := s.querySamples(ctx, name, start, end)
	observe("range", began, err)
	if err != nil {
		return nil, unavailable("range", name, err)
	}
	return samples, nil
}

func (s *Store) querySamples(ctx context.Context, name string, start, end time.Time) ([]series.Sample, error) {
	rows, err := s.db.QueryContext(ctx, s.queries.rangeSamples(name),
		formatStoreTime(start, s.location),
		formatStoreTime(end, s.location),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]series.Sample, 0)
	for rows.Next() {
		ts := wallClock{loc: s.location}
		var power, energy sql.NullFloat64
		if err := rows.Scan(&ts, &power, &energy); err != nil {
			return nil, err
		}
		if !ts.valid || !power.Valid || !energy.Valid {
			continue
		}
		samples = append(samples, series.Sample{At: ts.t, Power: power.Float64, Energy: energy.Float64})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// Nearest scans the tolerance window around reference in ascending order and
// returns the first timestamp not after reference. When none qualifies the
// last boundary is returned.
func (s *Store) Nearest(ctx context.Context, name string, reference time.Time, tolerance time.Duration) (time.Time, error) {
	if err := series.ValidateName(name); err != nil {
		return time.Time{}, err
	}
	if tolerance < 0 {
		tolerance = -tolerance
	}

	began := time.Now()
	found, ok, err := s.scanNearest(ctx, name, reference, tolerance)
	observe("nearest", began, err)
	if err != nil {
		return time.Time{}, unavailable("nearest", name, err)
	}
	if ok {
		return found, nil
	}

	last, err := s.Boundary(ctx, name, series.EdgeLast)
	if err != nil {
		return time.Time{}, err
	}
	return last.At, nil
}

func (s *Store) scanNearest(ctx context.Context, name string, reference time.Time, tolerance time.Duration) (time.Time, bool, error) {
	rows, err := s.db.QueryContext(ctx, s.queries.rangeTimestamps(name),
		formatStoreTime(reference.Add(-tolerance), s.location),
		formatStoreTime(reference.Add(tolerance), s.location),
	)
	if err != nil {
		return time.Time{}, false, err
	}
	defer rows.Close()

	for rows.Next() {
		ts := wallClock{loc: s.location}
		if err := rows.Scan(&ts); err != nil {
			return time.Time{}, false, err
		}
		if ts.valid && reference.Sub(ts.t) >= 0 {
			return ts.t, true, nil
		}
	}
	return time.Time{}, false, rows.Err()
}

// ListSeries enumerates the tables of the current schema.
func (s *Store) ListSeries(ctx context.Context) ([]string, error) {
	began := time.Now()
	names, err := s.queryTables(ctx)
	observe("list", began, err)
	if err != nil {
		return nil, unavailable("list", "", err)
	}
	return names, nil
}

func (s *Store) queryTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.queries.listTables())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// Ping checks connectivity for health probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

func observe(op string, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveStoreQuery(op, result, time.Since(start))
}

func unavailable(op, table string, err error) error {
	if table == "" {
		return fmt.Errorf("%w: %s: %w", series.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s %s: %w", series.ErrStoreUnavailable, op, table, err)
}
