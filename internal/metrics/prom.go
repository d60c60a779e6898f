package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"habitat/internal/model"
)

// Collectors groups the habitat Prometheus series. All methods are safe on a
// nil receiver so components can run without metrics.
type Collectors struct {
	Ticks         prometheus.Counter
	ChannelValue  *prometheus.GaugeVec
	Alerts        *prometheus.CounterVec
	Suppressed    *prometheus.CounterVec
	Commands      *prometheus.CounterVec
	PersistErrors *prometheus.CounterVec
	StreamErrors  prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	Panics       *prometheus.CounterVec
}

func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitat_ticks_total",
			Help: "Total telemetry ticks evaluated.",
		}),
		ChannelValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "habitat_channel_value",
			Help: "Most recent synthetic reading per channel.",
		}, []string{"channel"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitat_alerts_total",
			Help: "Alerts raised and logged, by channel and severity.",
		}, []string{"channel", "severity"}),
		Suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitat_alerts_suppressed_total",
			Help: "Breaches hidden by an admin override.",
		}, []string{"channel"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitat_commands_total",
			Help: "Terminal commands executed.",
		}, []string{"command"}),
		PersistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitat_persist_errors_total",
			Help: "Failed writes to the state store, by key.",
		}, []string{"key"}),
		StreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitat_stream_errors_total",
			Help: "Failed publishes to the event stream.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitat_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "habitat_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "endpoint", "status"}),
		Panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habitat_panics_recovered_total",
			Help: "Total number of panics recovered",
		}, []string{"component"}),
	}
	if reg != nil {
		reg.MustRegister(
			c.Ticks, c.ChannelValue, c.Alerts, c.Suppressed, c.Commands,
			c.PersistErrors, c.StreamErrors, c.HTTPRequests, c.HTTPDuration, c.Panics,
		)
	}
	return c
}

func (c *Collectors) ObserveSample(s model.Sample) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.ChannelValue.WithLabelValues(string(model.ChannelOxygen)).Set(s.Oxygen)
	c.ChannelValue.WithLabelValues(string(model.ChannelTemperature)).Set(s.Temperature)
	c.ChannelValue.WithLabelValues(string(model.ChannelFood)).Set(s.Food)
	c.ChannelValue.WithLabelValues(string(model.ChannelPower)).Set(s.PowerUsed)
	c.ChannelValue.WithLabelValues(string(model.ChannelSleep)).Set(s.Sleep)
	c.ChannelValue.WithLabelValues(string(model.ChannelWellness)).Set(s.Wellness.Mean())
}

func (c *Collectors) AlertRaised(ch model.Channel, sev model.Severity) {
	if c == nil {
		return
	}
	c.Alerts.WithLabelValues(string(ch), string(sev)).Inc()
}

func (c *Collectors) AlertSuppressed(ch model.Channel) {
	if c == nil {
		return
	}
	c.Suppressed.WithLabelValues(string(ch)).Inc()
}

func (c *Collectors) CommandExecuted(cmd string) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(cmd).Inc()
}

func (c *Collectors) PersistFailed(key string) {
	if c == nil {
		return
	}
	c.PersistErrors.WithLabelValues(key).Inc()
}

func (c *Collectors) StreamFailed() {
	if c == nil {
		return
	}
	c.StreamErrors.Inc()
}

func (c *Collectors) PanicRecovered(component string) {
	if c == nil {
		return
	}
	c.Panics.WithLabelValues(component).Inc()
}
