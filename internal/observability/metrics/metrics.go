package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "energy_series_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec

	windowTotal   *prometheus.CounterVec
	windowLatency *prometheus.HistogramVec
	windowSamples *prometheus.HistogramVec

	storeQueryTotal   *prometheus.CounterVec
	storeQueryLatency *prometheus.HistogramVec

	publishTotal *prometheus.CounterVec
	inFlight     prometheus.Gauge
)

// Init registers collectors. The optional lister backs the series_count gauge.
func Init(lister SeriesLister, logger *log.Logger) {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "requests_total",
				Help: "Total bus requests by mode and result",
			},
			[]string{"mode", "result"},
		)
		requestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "request_latency_seconds",
				Help:    "Bus request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		)

		windowTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "window_total",
				Help: "Total window resolutions by kind and result",
			},
			[]string{"kind", "result"},
		)
		windowLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "window_latency_seconds",
				Help:    "Window resolution and aggregation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		)
		windowSamples = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "window_samples",
				Help:    "Samples read per resolved window",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"kind"},
		)

		storeQueryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_queries_total",
				Help: "Total store queries by operation and result",
			},
			[]string{"operation", "result"},
		)
		storeQueryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "store_query_latency_seconds",
				Help:    "Store query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)

		publishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "publish_total",
				Help: "Total bus publishes by channel and result",
			},
			[]string{"channel", "result"},
		)
		inFlight = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "requests_in_flight",
				Help: "Bus requests currently being processed",
			},
		)

		prometheus.MustRegister(
			requestsTotal,
			requestLatency,
			windowTotal,
			windowLatency,
			windowSamples,
			storeQueryTotal,
			storeQueryLatency,
			publishTotal,
			inFlight,
		)

		if lister != nil {
			registerStoreMetrics(lister, logger)
		}
	})
}

// ObserveRequest records a bus request outcome. Result is a short error class or "success".
func ObserveRequest(mode, result string, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if requestsTotal != nil {
		requestsTotal.WithLabelValues(mode, result).Inc()
	}
	if requestLatency != nil {
		requestLatency.WithLabelValues(mode).Observe(duration.Seconds())
	}
}

// ObserveWindow records a window resolution outcome and the samples it read.
func ObserveWindow(kind, result string, duration time.Duration, samples int) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if windowTotal != nil {
		windowTotal.WithLabelValues(kind, result).Inc()
	}
	if windowLatency != nil {
		windowLatency.WithLabelValues(kind).Observe(duration.Seconds())
	}
	if windowSamples != nil && result == resultSuccess {
		windowSamples.WithLabelValues(kind).Observe(float64(samples))
	}
}

// ObserveStoreQuery records one store round-trip.
func ObserveStoreQuery(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if storeQueryTotal != nil {
		storeQueryTotal.WithLabelValues(operation, result).Inc()
	}
	if storeQueryLatency != nil {
		storeQueryLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// IncPublish counts a publish on a logical channel.
func IncPublish(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if publishTotal != nil {
		publishTotal.WithLabelValues(channel, result).Inc()
	}
}

// RequestStarted increments the in-flight gauge and returns its decrement.
func RequestStarted() func() {
	if inFlight == nil {
		return func() {}
	}
	inFlight.Inc()
	return inFlight.Dec
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
