package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	series "energy-series/internal/series/domain"
	"energy-series/internal/series/infrastructure/sqlstore"
)

type config struct {
	driver     string
	dsn        string
	prefix     string
	count      int
	startDate  string
	days       int
	interval   time.Duration
	peakWatts  float64
	location   string
	truncate   bool
	createOnly bool
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.count <= 0 {
		log.Fatal("series-count must be > 0")
	}
	if cfg.days <= 0 {
		log.Fatal("days must be > 0")
	}
	if cfg.interval <= 0 {
		log.Fatal("interval must be > 0")
	}

	dialect, err := sqlstore.ParseDialect(cfg.driver)
	if err != nil {
		log.Fatalf("invalid driver: %v", err)
	}
	loc := time.Local
	if cfg.location != "" {
		loc, err = time.LoadLocation(cfg.location)
		if err != nil {
			log.Fatalf("invalid location: %v", err)
		}
	}
	start, err := parseStartDate(cfg.startDate, loc)
	if err != nil {
		log.Fatalf("invalid start-date: %v", err)
	}

	db, err := sql.Open(dialect.DriverName(), cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	for _, name := range buildSeriesNames(cfg.prefix, cfg.count) {
		if err := createSeries(ctx, db, dialect, name, cfg.truncate); err != nil {
			log.Fatalf("create %s: %v", name, err)
		}
		if cfg.createOnly {
			log.Printf("created %s", name)
			continue
		}
		samples := generateSamples(start, cfg.days, cfg.interval, cfg.peakWatts)
		if err := seedSeries(ctx, db, dialect, name, samples, loc); err != nil {
			log.Fatalf("seed %s: %v", name, err)
		}
		log.Printf("seeded %s: samples=%d from=%s", name, len(samples), series.FormatTimestamp(start))
	}

	log.Printf("series seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.driver, "driver", envOrDefault("STORE_DRIVER", "pgx"), "store driver (pgx|mysql)")
	flag.StringVar(&cfg.dsn, "dsn", envOrDefault("DATABASE_URL", envOrDefault("PG_DSN", envOrDefault("MYSQL_DSN", ""))), "database DSN")
	flag.StringVar(&cfg.prefix, "series-prefix", envOrDefault("SERIES_PREFIX", "meter_"), "series table prefix")
	flag.IntVar(&cfg.count, "series-count", envOrInt("SERIES_COUNT", 3), "number of series to seed")
	flag.StringVar(&cfg.startDate, "start-date", envOrDefault("START_DATE", ""), "start date (YYYY-MM-DD)")
	flag.IntVar(&cfg.days, "days", envOrInt("DAYS", 7), "number of days to seed")
	flag.DurationVar(&cfg.interval, "interval", envOrDuration("INTERVAL", time.Minute), "sample interval")
	flag.Float64Var(&cfg.peakWatts, "peak-watts", envOrFloat("PEAK_WATTS", 250), "peak power of the synthetic load")
	flag.StringVar(&cfg.location, "location", envOrDefault("SERIES_LOCATION", ""), "IANA zone of stored timestamps")
	flag.BoolVar(&cfg.truncate, "truncate", envOrBool("TRUNCATE", false), "delete existing rows first")
	flag.BoolVar(&cfg.createOnly, "create-only", envOrBool("CREATE_ONLY", false), "create empty tables only")
	flag.Parse()
	return cfg
}

func parseStartDate(value string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return series.StartOfDay(time.Now().In(loc)).AddDate(0, 0, -7), nil
	}
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(value), loc)
}

func buildSeriesNames(prefix string, count int) []string {
	list := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		list = append(list, fmt.Sprintf("%s%03d", prefix, i))
	}
	return list
}

// generateSamples produces a daily load curve; energy is the joules drawn
// over each interval.
func generateSamples(start time.Time, days int, interval time.Duration, peak float64) []series.Sample {
	end := start.AddDate(0, 0, days)
	var samples []series.Sample
	for at := start; at.Before(end); at = at.Add(interval) {
		hour := float64(at.Hour()) + float64(at.Minute())/60
		power := peak * (0.55 + 0.45*math.Sin((hour-6)/24*2*math.Pi))
		power = math.Round(power*100) / 100
		samples = append(samples, series.Sample{
			At:     at,
			Power:  power,
			Energy: power * interval.Seconds(),
		})
	}
	return samples
}

func createSeries(ctx context.Context, db *sql.DB, dialect sqlstore.Dialect, name string, truncate bool) error {
	ddl, err := sqlstore.CreateTableSQL(dialect, name, sqlstore.DefaultColumns)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	if truncate {
		// name is validated by CreateTableSQL.
		if _, err := db.ExecContext(ctx, "DELETE FROM "+name); err != nil {
			return err
		}
	}
	return nil
}

func seedSeries(ctx context.Context, db *sql.DB, dialect sqlstore.Dialect, name string, samples []series.Sample, loc *time.Location) error {
	insertSQL, err := sqlstore.InsertSampleSQL(dialect, name, sqlstore.DefaultColumns)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx, sqlstore.SampleArgs(sample, loc)...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}
	_ = stmt.Close()
	return tx.Commit()
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envOrFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envOrBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
