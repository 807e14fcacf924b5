package sqlstore

import (
	"fmt"
	"time"

	series "energy-series/internal/series/domain"
)

// CreateTableSQL returns the DDL of a series table. The store itself never
// writes; seeding and ingestion tools use this to lay tables out the way the
// store reads them.
func CreateTableSQL(dialect Dialect, name string, columns Columns) (string, error) {
	if err := checkTable(dialect, name, columns); err != nil {
		return "", err
	}
	timeType, floatType := "TIMESTAMP", "DOUBLE PRECISION"
	if dialect == DialectMySQL {
		timeType, floatType = "DATETIME(6)", "DOUBLE"
	}
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	%s %s NOT NULL,
	%s %s,
	%s %s
)`,
		dialect.quote(name),
		dialect.quote(columns.Time), timeType,
		dialect.quote(columns.Power), floatType,
		dialect.quote(columns.Energy), floatType,
	), nil
}

// InsertSampleSQL returns the statement inserting one sample; see SampleArgs.
func InsertSampleSQL(dialect Dialect, name string, columns Columns) (string, error) {
	if err := checkTable(dialect, name, columns); err != nil {
		return "", err
	}
	return fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (%s, %s, %s)",
		dialect.quote(name),
		dialect.quote(columns.Time),
		dialect.quote(columns.Power),
		dialect.quote(columns.Energy),
		dialect.placeholder(1),
		dialect.placeholder(2),
		dialect.placeholder(3),
	), nil
}

// SampleArgs returns the arguments of InsertSampleSQL for a sample, with the
// timestamp rendered as wall-clock text in loc.
func SampleArgs(sample series.Sample, loc *time.Location) []any {
	if loc == nil {
		loc = time.Local
	}
	return []any{formatStoreTime(sample.At, loc), sample.Power, sample.Energy}
}

func checkTable(dialect Dialect, name string, columns Columns) error {
	if dialect != DialectPostgres && dialect != DialectMySQL {
		return fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
	if err := series.ValidateName(name); err != nil {
		return err
	}
	return columns.validate()
}
