// Package telemetry exposes build and snapshot metrics in the Prometheus
// text format.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/engine"
)

const namespace = "kpid"

// Metrics owns a private registry so tests and embedders never collide
// with the global one.
type Metrics struct {
	registry *prometheus.Registry

	buildDuration prometheus.Histogram
	buildsTotal   *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
	unifiedRows   prometheus.Gauge
	domainRows    *prometheus.GaugeVec
	qualityScore  *prometheus.GaugeVec
	droppedRows   *prometheus.GaugeVec
	warnings      prometheus.Gauge
	wsClients     prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates and registers the collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Time spent building a KPI snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		buildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Snapshot builds by result.",
		}, []string{"result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_publish_timestamp_seconds",
			Help:      "Unix time the current snapshot was built.",
		}),
		unifiedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unified_rows",
			Help:      "Rows in the published unified table.",
		}),
		domainRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "domain_rows",
			Help:      "KPI rows each domain contributed to the published snapshot.",
		}, []string{"domain"}),
		qualityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_score",
			Help:      "Share of clean numeric cells per source table (0-1).",
		}, []string{"table"}),
		droppedRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_rows_dropped",
			Help:      "Rows dropped by validation per source table.",
		}, []string{"table"}),
		warnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_warnings",
			Help:      "Warnings raised by the published build.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		m.buildDuration,
		m.buildsTotal,
		m.lastSuccess,
		m.unifiedRows,
		m.domainRows,
		m.qualityScore,
		m.droppedRows,
		m.warnings,
		m.wsClients,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveBuild implements engine.BuildObserver.
func (m *Metrics) ObserveBuild(d time.Duration, err error) {
	m.buildDuration.Observe(d.Seconds())
	if err != nil {
		m.buildsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.buildsTotal.WithLabelValues("success").Inc()
}

// ObserveSnapshot records the shape of a published snapshot. Register it
// with Layer.OnPublish.
func (m *Metrics) ObserveSnapshot(snap *engine.Snapshot) {
	m.lastSuccess.Set(float64(snap.BuiltAt.Unix()))
	m.unifiedRows.Set(float64(snap.Len()))
	m.warnings.Set(float64(len(snap.Warnings)))

	m.domainRows.Reset()
	for d, n := range snap.RowCounts() {
		m.domainRows.WithLabelValues(string(d)).Set(float64(n))
	}

	m.qualityScore.Reset()
	m.droppedRows.Reset()
	for _, r := range snap.QualityReports() {
		m.qualityScore.WithLabelValues(r.Name).Set(r.Score)
		m.droppedRows.WithLabelValues(r.Name).Set(float64(r.RowsDropped))
	}
}

// SetWebsocketClients records the hub's connection count.
func (m *Metrics) SetWebsocketClients(n int) {
	m.wsClients.Set(float64(n))
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
