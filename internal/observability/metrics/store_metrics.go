package metrics

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const storeGaugeTimeout = 5 * time.Second

// SeriesLister enumerates the series known to the store.
type SeriesLister interface {
	ListSeries(ctx context.Context) ([]string, error)
}

func registerStoreMetrics(lister SeriesLister, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "series_count",
			Help: "Series currently recorded in the store",
		},
		func() float64 {
			return countSeries(lister, logger)
		},
	))
}

func countSeries(lister SeriesLister, logger *log.Logger) float64 {
	ctx, cancel := context.WithTimeout(context.Background(), storeGaugeTimeout)
	defer cancel()
	names, err := lister.ListSeries(ctx)
	if err != nil {
		if logger != nil {
			logger.Printf("metrics series count failed: %v", err)
		}
		return 0
	}
	return float64(len(names))
}
