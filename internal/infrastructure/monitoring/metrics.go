package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type StoreMetrics struct {
	OperationDuration *prometheus.HistogramVec
	Up                prometheus.Gauge
	IndexPresent      prometheus.Gauge
}

type BusinessMetrics struct {
	CustomerEventsTotal *prometheus.CounterVec
}

var (
	Store = StoreMetrics{
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "customer_service_store_operation_duration_seconds",
				Help:    "Histogram of document store operation latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		Up: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "customer_service_store_up",
				Help: "1 when the last document store health check succeeded.",
			},
		),
		IndexPresent: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "customer_service_username_index_present",
				Help: "1 when the username search index was verified present.",
			},
		),
	}

	Business = BusinessMetrics{
		CustomerEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "customer_service_customer_events_total",
				Help: "Total number of customer lifecycle events, by kind.",
			},
			[]string{"kind"},
		),
	}
)

func RecordStoreOperation(operation, status string, duration time.Duration) {
	Store.OperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

func SetStoreUp(up bool) {
	Store.Up.Set(boolToFloat(up))
}

func SetIndexPresent(present bool) {
	Store.IndexPresent.Set(boolToFloat(present))
}

func RecordCustomerEvent(kind string) {
	Business.CustomerEventsTotal.WithLabelValues(kind).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
