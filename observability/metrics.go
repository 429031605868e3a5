package observability

import (
	"bot-bridge/runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "bridge"

// StatsSource is implemented by the hub.
type StatsSource interface {
	Stats() runtime.Stats
}

// Metrics owns a dedicated registry so tests can build several instances.
type Metrics struct {
	Registry       *prometheus.Registry
	events         *prometheus.CounterVec
	framesRejected *prometheus.CounterVec
	channelLength  *prometheus.GaugeVec
	channelCap     *prometheus.GaugeVec
	sinkFailures   prometheus.Counter
	workerRestarts *prometheus.CounterVec
	censorHits     *prometheus.CounterVec
}

func NewMetrics(source StatsSource) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "State-change events handed to permanent sinks, by type.",
		}, []string{"type"}),
		framesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Inbound real-time frames dropped, by reason.",
		}, []string{"reason"}),
		channelLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_length",
			Help:      "Queued items of internal channels.",
		}, []string{"channel"}),
		channelCap: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_capacity",
			Help:      "Capacity of internal channels.",
		}, []string{"channel"}),
		sinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Failed permanent sink writes.",
		}),
		workerRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Supervised workers restarted after a panic or an error.",
		}, []string{"worker"}),
		censorHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "censored_words_total",
			Help:      "Censored dictionary words masked in posted messages.",
		}, []string{"word"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events, m.framesRejected, m.channelLength, m.channelCap, m.sinkFailures,
		m.workerRestarts, m.censorHits,
	)
	if source != nil {
		m.registerStats(source)
	}
	return m
}

func (m *Metrics) registerStats(source StatsSource) {
	gauge := func(name, help string, value func(runtime.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return value(source.Stats()) })
	}
	counter := func(name, help string, value func(runtime.Stats) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return value(source.Stats()) })
	}
	m.Registry.MustRegister(
		gauge("connections", "Open real-time connections.",
			func(s runtime.Stats) float64 { return float64(s.Connections) }),
		gauge("online_users", "Identities with at least one connection.",
			func(s runtime.Stats) float64 { return float64(s.Online) }),
		gauge("messages_retained", "Messages held by the log.",
			func(s runtime.Stats) float64 { return float64(s.Messages) }),
		gauge("typing_states", "Connections currently typing.",
			func(s runtime.Stats) float64 { return float64(s.Typing) }),
		counter("deliveries_dropped_total", "Events dropped because a connection buffer was full.",
			func(s runtime.Stats) float64 { return float64(s.Dropped) }),
		counter("permanent_dropped_total", "Events lost because the permanent channel was full.",
			func(s runtime.Stats) float64 { return float64(s.PermanentDropped) }),
	)
}

func (m *Metrics) CountEvent(eventType string) {
	m.events.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RejectFrame(reason string) {
	m.framesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveChannel(name string, length, capacity int) {
	m.channelLength.WithLabelValues(name).Set(float64(length))
	m.channelCap.WithLabelValues(name).Set(float64(capacity))
}

func (m *Metrics) SinkFailed() {
	m.sinkFailures.Inc()
}

func (m *Metrics) WorkerRestarted(name string) {
	m.workerRestarts.WithLabelValues(name).Inc()
}

func (m *Metrics) CensorHit(word string) {
	m.censorHits.WithLabelValues(word).Inc()
}
