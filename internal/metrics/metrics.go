// Package metrics exposes export pipeline metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/exporter"
)

const namespace = "inspection_exporter"

var _ exporter.Observer = (*Metrics)(nil)

type Metrics struct {
	registry *prometheus.Registry

	jobsTotal      *prometheus.CounterVec
	skippedTotal   *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_jobs_total",
			Help:      "Finished export jobs by kind and outcome.",
		}, []string{"kind", "status"}),
		skippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_items_skipped_total",
			Help:      "Inspections left out of an export because they failed to render.",
		}, []string{"kind"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time to render and capture one inspection report.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"format", "result"}),
	}
	reg.MustRegister(
		m.jobsTotal,
		m.skippedTotal,
		m.renderDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) UnitDone(format exporter.Format, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.renderDuration.WithLabelValues(string(format), result).Observe(took.Seconds())
}

func (m *Metrics) JobDone(kind export.Kind, s *exporter.Summary, err error) {
	status := string(export.StatusDone)
	switch {
	case exporter.IsCancelled(err):
		status = string(export.StatusCancelled)
	case err != nil:
		status = string(export.StatusFailed)
	}
	m.jobsTotal.WithLabelValues(string(kind), status).Inc()
	if s != nil && len(s.Skipped) > 0 {
		m.skippedTotal.WithLabelValues(string(kind)).Add(float64(len(s.Skipped)))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
