// Package metrics exposes controller state as Prometheus collectors on a
// private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/feedback-controller/internal/logic"
	"github.com/sweeney/feedback-controller/internal/status"
)

const namespace = "feedback_controller"

// Metrics contains all controller metrics.
type Metrics struct {
	registry *prometheus.Registry

	Reading      *prometheus.GaugeVec
	Stat         *prometheus.GaugeVec
	Setpoint     prometheus.Gauge
	Hysteresis   prometheus.Gauge
	OutputState  prometheus.Gauge
	AlarmActive  prometheus.Gauge
	Events       *prometheus.CounterVec
	PollErrors   prometheus.Counter
	PollDuration prometheus.Histogram
	SensorErrors *prometheus.GaugeVec
	SensorAge    *prometheus.GaugeVec

	MQTTConnected prometheus.Gauge
	PublishErrors prometheus.Counter
}

// New creates the metrics and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Reading: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "input",
				Name:      "reading",
				Help:      "Latest calibrated reading per input",
			},
			[]string{"input", "parameter"},
		),

		Stat: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "input",
				Name:      "stat",
				Help:      "Aggregate over the latest readings (min, avg, max)",
			},
			[]string{"stat"},
		),

		Setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "setpoint",
			Help:      "Control setpoint",
		}),

		Hysteresis: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hysteresis",
			Help:      "Dead band half width",
		}),

		OutputState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "energized",
			Help:      "Control state driven to every output (1=on)",
		}),

		AlarmActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alarm",
			Name:      "active",
			Help:      "Whether an alarm episode is in progress (1=active)",
		}),

		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Controller transitions by type",
			},
			[]string{"event"},
		),

		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "errors_total",
			Help:      "Polls that returned an error",
		}),

		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "duration_seconds",
			Help:      "Time spent in one poll including sensor reads",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		}),

		SensorErrors: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "input",
				Name:      "errors",
				Help:      "Failed reads or rejected payloads per input since start",
			},
			[]string{"input"},
		),

		SensorAge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "input",
				Name:      "age_seconds",
				Help:      "Seconds since the last good reading per input",
			},
			[]string{"input"},
		),

		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "MQTT connection state (1=connected)",
		}),

		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "publish_errors_total",
			Help:      "Events that failed to publish",
		}),
	}

	m.registry.MustRegister(
		m.Reading,
		m.Stat,
		m.Setpoint,
		m.Hysteresis,
		m.OutputState,
		m.AlarmActive,
		m.Events,
		m.PollErrors,
		m.PollDuration,
		m.SensorErrors,
		m.SensorAge,
		m.MQTTConnected,
		m.PublishErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pre-create every event series so rates start at zero.
	for _, t := range []logic.EventType{
		logic.EventOutputOn, logic.EventOutputOff,
		logic.EventAlarmRegistered, logic.EventAlarmCleared,
	} {
		m.Events.WithLabelValues(string(t))
	}

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObservePoll records the outcome of a successful poll.
func (m *Metrics) ObservePoll(readings []logic.InputReading, stats logic.Stats, state, alarm bool, took time.Duration) {
	for _, r := range readings {
		m.Reading.WithLabelValues(r.Name, string(r.ParameterCode)).Set(r.Value)
	}
	m.Stat.WithLabelValues("min").Set(stats.Min)
	m.Stat.WithLabelValues("avg").Set(stats.Avg)
	m.Stat.WithLabelValues("max").Set(stats.Max)
	m.OutputState.Set(boolToFloat(state))
	m.AlarmActive.Set(boolToFloat(alarm))
	m.PollDuration.Observe(took.Seconds())
}

// ObserveSensors records per-input error counts and staleness. An input
// that has never delivered a good reading gets no age series.
func (m *Metrics) ObserveSensors(health []status.SensorHealth, now time.Time) {
	for _, h := range health {
		m.SensorErrors.WithLabelValues(h.Name).Set(float64(h.Errors))
		if !h.LastUpdate.IsZero() {
			m.SensorAge.WithLabelValues(h.Name).Set(now.Sub(h.LastUpdate).Seconds())
		}
	}
}

// ObserveSettings records the decision configuration.
func (m *Metrics) ObserveSettings(s logic.Settings) {
	m.Setpoint.Set(s.Setpoint)
	m.Hysteresis.Set(s.Hysteresis)
}

// ObserveEvent counts one controller transition.
func (m *Metrics) ObserveEvent(e logic.Event) {
	m.Events.WithLabelValues(string(e.Type)).Inc()
}

// PollFailed counts a failed poll.
func (m *Metrics) PollFailed() {
	m.PollErrors.Inc()
}

// PublishFailed counts a failed publish.
func (m *Metrics) PublishFailed() {
	m.PublishErrors.Inc()
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(up bool) {
	m.MQTTConnected.Set(boolToFloat(up))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
