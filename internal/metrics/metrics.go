package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "farm"

// Metrics holds the process collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	Frames          *prometheus.CounterVec
	Readings        *prometheus.CounterVec
	PersistFailures prometheus.Counter
	Alerts          *prometheus.CounterVec
	ScheduleFires   prometheus.Counter
	Commands        *prometheus.CounterVec
	LiveConnected   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Device frames received, by decoded kind.",
		}, []string{"kind"}),
		Readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_emitted_total",
			Help:      "Completed readings emitted by the aggregator.",
		}, []string{"stale"}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reading_persist_failures_total",
			Help:      "Readings the persistence sink rejected.",
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Notifications handed to the notification facility, by tag.",
		}, []string{"tag"}),
		ScheduleFires: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_fires_total",
			Help:      "Schedule rules fired.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_commands_total",
			Help:      "Relay commands dispatched, by result.",
		}, []string{"result"}),
		LiveConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connected",
			Help:      "1 when the live view has fresh data.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Frames,
		m.Readings,
		m.PersistFailures,
		m.Alerts,
		m.ScheduleFires,
		m.Commands,
		m.LiveConnected,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }
