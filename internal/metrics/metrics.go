package metrics

import (
	"net/http"
	"time"

	"homehub/internal/events"
	"homehub/internal/status"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	power         *prometheus.GaugeVec
	lineVoltage   prometheus.Gauge
	batterySoc    prometheus.Gauge
	gridRelay     prometheus.Gauge
	gridPresent   prometheus.Gauge
	loadOn        *prometheus.GaugeVec
	modulePresent *prometheus.GaugeVec
	lastRefresh   prometheus.Gauge
	polls         *prometheus.CounterVec
	pollErrors    *prometheus.CounterVec
	pollDuration  *prometheus.HistogramVec
	eventsTotal   *prometheus.CounterVec
	multicast     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		power: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "homehub_power_watts",
				Help: "Instantaneous power reported by the inverter",
			},
			[]string{"flow"},
		),
		lineVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "homehub_line_voltage_volts",
			Help: "Grid line voltage",
		}),
		batterySoc: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "homehub_battery_soc_percent",
			Help: "Battery state of charge",
		}),
		gridRelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "homehub_grid_relay_on",
			Help: "1 if the grid relay is closed",
		}),
		gridPresent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "homehub_grid_present",
			Help: "1 if grid voltage is present",
		}),
		loadOn: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "homehub_load_on",
				Help: "1 if a controllable load is switched on",
			},
			[]string{"load"},
		),
		modulePresent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "homehub_module_present",
				Help: "1 if the module was present in the last poll",
			},
			[]string{"module"},
		),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "homehub_last_refresh_timestamp_seconds",
			Help: "Unix timestamp of the last completed poll",
		}),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homehub_polls_total",
				Help: "Completed poll cycles",
			},
			[]string{"source", "path"},
		),
		pollErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homehub_poll_errors_total",
				Help: "Poll cycles that failed",
			},
			[]string{"source"},
		),
		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "homehub_poll_duration_seconds",
				Help:    "Duration of poll cycles",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 4, 8, 16},
			},
			[]string{"source"},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homehub_events_total",
				Help: "Detected events",
			},
			[]string{"kind"},
		),
		multicast: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homehub_multicast_packets_total",
				Help: "Accepted multicast packets",
			},
			[]string{"module", "inferred"},
		),
	}

	m.registry.MustRegister(
		m.power, m.lineVoltage, m.batterySoc, m.gridRelay, m.gridPresent,
		m.loadOn, m.modulePresent, m.lastRefresh,
		m.polls, m.pollErrors, m.pollDuration, m.eventsTotal, m.multicast,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ObserveCycle records one completed poll.
func (m *Metrics) ObserveCycle(source string, u status.Unified, evs []events.Event, at time.Time, took time.Duration) {
	path := "http"
	if u.FromMulticast {
		path = "multicast"
	}
	m.polls.WithLabelValues(source, path).Inc()
	m.pollDuration.WithLabelValues(source).Observe(took.Seconds())
	m.lastRefresh.Set(float64(at.Unix()))

	m.modulePresent.WithLabelValues(string(status.ModuleInverter)).Set(boolGauge(u.Inverter != nil))
	m.modulePresent.WithLabelValues(string(status.ModuleLoadController)).Set(boolGauge(u.LoadController != nil))
	m.modulePresent.WithLabelValues(string(status.ModuleGarage)).Set(boolGauge(u.Garage != nil))

	if inv := u.Inverter; inv != nil {
		m.power.WithLabelValues("pv").Set(inv.PvW)
		m.power.WithLabelValues("grid").Set(inv.GridW)
		m.power.WithLabelValues("load").Set(inv.LoadW)
		m.power.WithLabelValues("battery").Set(inv.BatteryPower)
		m.lineVoltage.Set(inv.LineVoltage)
		m.batterySoc.Set(inv.BatterySoc)
		m.gridRelay.Set(boolGauge(inv.GridRelayOn))
		m.gridPresent.Set(boolGauge(inv.GridPresent))
	}
	if lc := u.LoadController; lc != nil {
		m.loadOn.WithLabelValues("boiler1").Set(boolGauge(lc.Boiler1On))
		m.loadOn.WithLabelValues("pump").Set(boolGauge(lc.PumpOn))
	}
	if g := u.Garage; g != nil {
		m.loadOn.WithLabelValues("boiler2").Set(boolGauge(g.Boiler2On))
	}

	for _, e := range evs {
		m.eventsTotal.WithLabelValues(string(e.Kind)).Inc()
	}
}

func (m *Metrics) ObservePollError(source string) {
	m.pollErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) ObservePacket(module status.Module, inferred bool) {
	label := "false"
	if inferred {
		label = "true"
	}
	m.multicast.WithLabelValues(string(module), label).Inc()
}
