package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"energy-series/internal/messaging"
	kafkabus "energy-series/internal/messaging/kafka"
	mqttbus "energy-series/internal/messaging/mqtt"
	"energy-series/internal/observability/metrics"
	"energy-series/internal/series/application"
	series "energy-series/internal/series/domain"
	"energy-series/internal/series/infrastructure/memory"
	"energy-series/internal/series/infrastructure/sqlstore"
	seriesbus "energy-series/internal/series/interfaces/bus"
	serieshttp "energy-series/internal/series/interfaces/http"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	loc, err := cfg.location()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	clock := series.SystemClock{Location: loc}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, loc, clock)
	if err != nil {
		logger.Fatalf("store error: %v", err)
	}
	defer closeStore()

	metrics.Init(store, logger)

	resolver, err := application.NewResolver(store,
		application.WithClock(clock),
		application.WithLocation(loc),
		application.WithTolerance(cfg.NearestTolerance),
	)
	if err != nil {
		logger.Fatalf("resolver error: %v", err)
	}
	service, err := application.NewQueryService(resolver, store)
	if err != nil {
		logger.Fatalf("query service error: %v", err)
	}

	transport, err := openTransport(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("transport error: %v", err)
	}

	dispatcher, err := seriesbus.NewDispatcher(service, transport,
		seriesbus.WithTopics(cfg.Topics),
		seriesbus.WithRequestTimeout(cfg.RequestTimeout),
		seriesbus.WithMaxConcurrent(cfg.MaxConcurrentRequests),
		seriesbus.WithLocation(loc),
		seriesbus.WithHourCorrection(cfg.HourCorrection),
		seriesbus.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("dispatcher error: %v", err)
	}

	// Requests outlive the signal context so in-flight work can finish on shutdown.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	if err := dispatcher.Subscribe(runCtx, transport); err != nil {
		logger.Fatalf("subscribe error: %v", err)
	}
	logger.Printf("series dispatcher listening transport=%s topic=%s", cfg.Transport.Kind, cfg.Topics.Request)

	seriesHandler, err := serieshttp.NewHandler(service, loc, logger)
	if err != nil {
		logger.Fatalf("series handler error: %v", err)
	}

	mux := http.NewServeMux()
	seriesHandler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
			if err := pinger.Ping(r.Context()); err != nil {
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Printf("dispatcher shutdown error: %v", err)
	}
	cancelRun()
	if err := transport.Close(); err != nil {
		logger.Printf("transport close error: %v", err)
	}
}

func openStore(ctx context.Context, cfg config, loc *time.Location, clock series.Clock) (application.SeriesStore, func(), error) {
	if strings.EqualFold(cfg.Store.Driver, storeDriverMemory) {
		return memory.NewStore(memory.WithClock(clock)), func() {}, nil
	}

	dialect, err := sqlstore.ParseDialect(cfg.Store.Driver)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(dialect.DriverName(), cfg.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Store.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Store.MaxOpenConns)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	store, err := sqlstore.New(db, dialect,
		sqlstore.WithColumns(cfg.Store.Columns),
		sqlstore.WithLocation(loc),
		sqlstore.WithClock(clock),
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}

func openTransport(ctx context.Context, cfg config, logger *log.Logger) (messaging.Bus, error) {
	switch cfg.Transport.Kind {
	case transportMQTT:
		return mqttbus.Dial(ctx, cfg.Transport.MQTT, logger)
	case transportKafka:
		return kafkabus.New(cfg.Transport.Kafka, logger)
	default:
		return messaging.NewInMemoryBus(), nil
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
