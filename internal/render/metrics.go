package render

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the render collectors and the registry they live in.
// Other packages register their own collectors into Registry so a single
// textfile export covers the whole process.
type Metrics struct {
	registry       *prometheus.Registry
	rendersTotal   *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	fallbacks      *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		rendersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgraph_render_total",
			Help: "Total graph renders by backend and final status.",
		}, []string{"backend", "status"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelgraph_render_duration_seconds",
			Help:    "Wall time of each graph render.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgraph_render_fallbacks_total",
			Help: "Ops the accelerated backend handed to the software backend.",
		}, []string{"op"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgraph_render_cache_lookups_total",
			Help: "Intermediate cache lookups by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.rendersTotal,
		m.renderDuration,
		m.fallbacks,
		m.cacheLookups,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every registered metric in the text exposition
// format, for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func (m *Metrics) observeRender(backend string, err error, elapsed time.Duration) {
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	m.rendersTotal.WithLabelValues(backend, status).Inc()
	m.renderDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

func (m *Metrics) observeCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
