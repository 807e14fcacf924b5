package sqlstore

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect selects placeholder, quoting and catalog syntax.
type Dialect string

const (
	// DialectPostgres targets Postgres through the pgx stdlib driver.
	DialectPostgres Dialect = "pgx"
	// DialectMySQL targets MariaDB/MySQL through go-sql-driver/mysql.
	DialectMySQL Dialect = "mysql"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ParseDialect maps a driver name to a dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// DriverName returns the database/sql driver name registered for the dialect.
func (d Dialect) DriverName() string {
	if d == DialectMySQL {
		return "mysql"
	}
	return "pgx"
}

func (d Dialect) quote(identifier string) string {
	if d == DialectMySQL {
		return "`" + identifier + "`"
	}
	return `"` + identifier + `"`
}

func (d Dialect) placeholder(n int) string {
	if d == DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

func (d Dialect) currentSchema() string {
	if d == DialectMySQL {
		return "DATABASE()"
	}
	return "current_schema()"
}

// Columns names the timestamp, power and energy columns of a series table.
type Columns struct {
	Time   string `yaml:"time"`
	Power  string `yaml:"power"`
	Energy string `yaml:"energy"`
}

// DefaultColumns matches the deployed MariaDB schema.
var DefaultColumns = Columns{Time: "fecha", Power: "potencia", Energy: "energia"}

func (c Columns) validate() error {
	for _, name := range []string{c.Time, c.Power, c.Energy} {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("sqlstore: invalid column name %q", name)
		}
	}
	return nil
}

type queries struct {
	dialect Dialect
	columns Columns
}

func (q queries) boundary(table string, fn string) string {
	return fmt.Sprintf("SELECT %s(%s) FROM %s", fn, q.dialect.quote(q.columns.Time), q.dialect.quote(table))
}

func (q queries) rangeSamples(table string) string {
	return fmt.Sprintf(`
SELECT %[1]s, %[2]s, %[3]s
FROM %[4]s
WHERE %[1]s BETWEEN %[5]s AND %[6]s
ORDER BY %[1]s ASC`,
		q.dialect.quote(q.columns.Time),
		q.dialect.quote(q.columns.Power),
		q.dialect.quote(q.columns.Energy),
		q.dialect.quote(table),
		q.dialect.placeholder(1),
		q.dialect.placeholder(2),
	)
}

func (q queries) rangeTimestamps(table string) string {
	return fmt.Sprintf(`
SELECT %[1]s
FROM %[2]s
WHERE %[1]s BETWEEN %[3]s AND %[4]s
ORDER BY %[1]s ASC`,
		q.dialect.quote(q.columns.Time),
		q.dialect.quote(table),
		q.dialect.placeholder(1),
		q.dialect.placeholder(2),
	)
}

func (q queries) listTables() string {
	return fmt.Sprintf(`
SELECT table_name
FROM information_schema.tables
WHERE table_schema = %s
ORDER BY table_name`, q.dialect.currentSchema())
}
