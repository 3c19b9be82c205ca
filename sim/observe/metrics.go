// Package observe bundles Prometheus metrics for a simulation run. The
// engine updates the collector each tick when one is attached; serving the
// registry (HTTP handler, push gateway) is the embedding application's job —
// the engine itself never opens network connections.
package observe

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunCollector holds the per-run gauges and counters.
type RunCollector struct {
	ClockTicks       prometheus.Gauge
	ActiveAgents     prometheus.Gauge
	CompletedAgents  prometheus.Gauge
	EdgeEntries      prometheus.Counter
	CongestionEvents prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewRunCollector registers the run metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Re-registration of
// identical metrics reuses the existing collectors.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer, _ := reg.(prometheus.Gatherer)

	clock, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pedsim_clock_ticks",
		Help: "Current simulation clock in ticks.",
	}))
	if err != nil {
		return nil, err
	}
	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pedsim_active_agents",
		Help: "Agents currently traversing an edge.",
	}))
	if err != nil {
		return nil, err
	}
	completed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pedsim_completed_agents",
		Help: "Agents that finished their full schedule.",
	}))
	if err != nil {
		return nil, err
	}
	entries, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pedsim_edge_entries_total",
		Help: "Total edge admissions across the run.",
	}))
	if err != nil {
		return nil, err
	}
	congestion, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pedsim_congestion_events_total",
		Help: "Edge-ticks with a non-empty admission queue.",
	}))
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		ClockTicks:       clock,
		ActiveAgents:     active,
		CompletedAgents:  completed,
		EdgeEntries:      entries,
		CongestionEvents: congestion,
		gatherer:         gatherer,
	}, nil
}

// Handler returns an HTTP handler serving the collector's registry, falling
// back to the default gatherer when the metrics live on the global registry.
func (c *RunCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records the end-of-tick engine state.
func (c *RunCollector) ObserveTick(clock int64, active, completed int) {
	c.ClockTicks.Set(float64(clock))
	c.ActiveAgents.Set(float64(active))
	c.CompletedAgents.Set(float64(completed))
}

// AddEdgeEntries adds newly admitted edge entries for the tick.
func (c *RunCollector) AddEdgeEntries(n int) {
	c.EdgeEntries.Add(float64(n))
}

// AddCongestionEvents adds the count of edges with queued agents this tick.
func (c *RunCollector) AddCongestionEvents(n int) {
	c.CongestionEvents.Add(float64(n))
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return g, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}
