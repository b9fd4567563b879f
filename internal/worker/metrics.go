package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	batchesTotal         *prometheus.CounterVec
	itemsTotal           *prometheus.CounterVec
	itemDuration         *prometheus.HistogramVec
	activeItems          prometheus.Gauge
	pixelsProcessedTotal prometheus.Counter
	bytesWrittenTotal    prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

// newMetrics registers the batch collectors into reg, normally the
// render metrics registry so one textfile export covers both. A nil reg
// gets a private registry.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &metrics{
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgraph_batch_runs_total",
			Help: "Total batch runs by final status.",
		}, []string{"status"}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgraph_batch_items_total",
			Help: "Total batch items by final status.",
		}, []string{"status"}),
		itemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelgraph_batch_item_duration_seconds",
			Help:    "Processing duration for each batch item.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		activeItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelgraph_batch_active_items",
			Help: "Current number of items being processed.",
		}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelgraph_usage_pixels_processed_total",
			Help: "Total output pixels across successful items.",
		}),
		bytesWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelgraph_usage_bytes_written_total",
			Help: "Total encoded bytes written across successful items.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelgraph_usage_compute_time_ms_total",
			Help: "Total compute time in milliseconds across successful items.",
		}),
	}

	reg.MustRegister(
		m.batchesTotal,
		m.itemsTotal,
		m.itemDuration,
		m.activeItems,
		m.pixelsProcessedTotal,
		m.bytesWrittenTotal,
		m.computeTimeMSTotal,
	)
	return m
}
