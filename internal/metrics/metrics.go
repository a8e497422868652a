// Package metrics exposes Prometheus instrumentation for the ingest
// pipeline. All methods are safe on a nil receiver so components can run
// uninstrumented in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline counters and gauges.
type Metrics struct {
	registry *prometheus.Registry

	readingsIngested  *prometheus.CounterVec
	readingsDropped   prometheus.Counter
	alertsRaised      *prometheus.CounterVec
	broadcastFailures prometheus.Counter
	observers         prometheus.Gauge
}

// New creates and registers the metric set on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtb_readings_ingested_total",
			Help: "Total readings accepted by the ingest pipeline, by sensor kind.",
		}, []string{"kind"}),
		readingsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtb_readings_dropped_total",
			Help: "Total readings dropped because the ingest queue was full.",
		}),
		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtb_alerts_total",
			Help: "Total validation alerts raised, by severity.",
		}, []string{"severity"}),
		broadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtb_broadcast_failures_total",
			Help: "Total observer deliveries that failed and caused a drop.",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtb_observers",
			Help: "Currently connected observers.",
		}),
	}

	m.registry.MustRegister(
		m.readingsIngested,
		m.readingsDropped,
		m.alertsRaised,
		m.broadcastFailures,
		m.observers,
	)
	return m
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ReadingIngested counts an accepted reading.
func (m *Metrics) ReadingIngested(kind string) {
	if m == nil {
		return
	}
	m.readingsIngested.WithLabelValues(kind).Inc()
}

// ReadingDropped counts a reading rejected by a full ingest queue.
func (m *Metrics) ReadingDropped() {
	if m == nil {
		return
	}
	m.readingsDropped.Inc()
}

// AlertRaised counts a validation alert.
func (m *Metrics) AlertRaised(severity string) {
	if m == nil {
		return
	}
	m.alertsRaised.WithLabelValues(severity).Inc()
}

// BroadcastFailed counts a failed observer delivery.
func (m *Metrics) BroadcastFailed() {
	if m == nil {
		return
	}
	m.broadcastFailures.Inc()
}

// SetObservers records the current observer count.
func (m *Metrics) SetObservers(n int) {
	if m == nil {
		return
	}
	m.observers.Set(float64(n))
}
