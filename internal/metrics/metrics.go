// Package metrics exposes console activity as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/spacebus/internal/console"
	"github.com/sweeney/spacebus/internal/dispatch"
)

// Collector holds the console metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Events        *prometheus.CounterVec
	Steps         *prometheus.CounterVec
	MainPower     prometheus.Gauge
	SolarPower    prometheus.Gauge
	PendingTimers prometheus.Gauge
	SimSeconds    prometheus.Gauge
	Inputs        *prometheus.GaugeVec
	Refused       *prometheus.GaugeVec
}

// NewCollector registers the console metrics against reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spacebus_events_total",
			Help: "Events dispatched on the console bus, by kind.",
		}, []string{"kind"}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spacebus_steps_total",
			Help: "Scenario steps that ended, by outcome.",
		}, []string{"outcome"}),
		MainPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spacebus_main_power",
			Help: "Current main bus power.",
		}),
		SolarPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spacebus_solar_power",
			Help: "Current solar panel output.",
		}),
		PendingTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spacebus_pending_timers",
			Help: "Timers waiting to fire on both simulated clocks.",
		}),
		SimSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spacebus_sim_seconds",
			Help: "Simulated time on the scenario clock.",
		}),
		Inputs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spacebus_input_events",
			Help: "Debouncer counters since startup, by stat.",
		}, []string{"stat"}),
		Refused: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spacebus_refused_inputs",
			Help: "Inputs that did not change state, by reason.",
		}, []string{"reason"}),
	}

	var err error
	if c.Events, err = registerCounterVec(reg, c.Events, "spacebus_events_total"); err != nil {
		return nil, err
	}
	if c.Steps, err = registerCounterVec(reg, c.Steps, "spacebus_steps_total"); err != nil {
		return nil, err
	}
	if c.Inputs, err = registerGaugeVec(reg, c.Inputs, "spacebus_input_events"); err != nil {
		return nil, err
	}
	if c.Refused, err = registerGaugeVec(reg, c.Refused, "spacebus_refused_inputs"); err != nil {
		return nil, err
	}
	for _, g := range []struct {
		gauge *prometheus.Gauge
		name  string
	}{
		{&c.MainPower, "spacebus_main_power"},
		{&c.SolarPower, "spacebus_solar_power"},
		{&c.PendingTimers, "spacebus_pending_timers"},
		{&c.SimSeconds, "spacebus_sim_seconds"},
	} {
		if *g.gauge, err = registerGauge(reg, *g.gauge, g.name); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Tap counts a bus event. Install it with Bus.Tap.
func (c *Collector) Tap(e dispatch.Event) {
	if c == nil {
		return
	}
	c.Events.WithLabelValues(string(e.Kind)).Inc()
	if e.Kind == dispatch.StepEnded {
		outcome := "lost"
		if e.Args.Bool("win", false) {
			outcome = "won"
		}
		c.Steps.WithLabelValues(outcome).Inc()
	}
}

// Observe updates the gauges from a console snapshot.
func (c *Collector) Observe(s console.Snapshot) {
	if c == nil {
		return
	}
	c.MainPower.Set(s.MainPower)
	c.SolarPower.Set(s.SolarPower)
	c.PendingTimers.Set(float64(s.PendingTimers))
	c.SimSeconds.Set(s.SimTime.Seconds())

	in := s.Stats.Input
	c.Inputs.WithLabelValues("raw").Set(float64(in.Raw))
	c.Inputs.WithLabelValues("emitted").Set(float64(in.Emitted))
	c.Inputs.WithLabelValues("ghosts").Set(float64(in.Ghosts))
	c.Inputs.WithLabelValues("suppressed").Set(float64(in.Suppressed))
	c.Inputs.WithLabelValues("unchanged").Set(float64(in.Unchanged))
	c.Inputs.WithLabelValues("ignored").Set(float64(in.Ignored))

	c.Refused.WithLabelValues("vetoed").Set(float64(s.Stats.Vetoes))
	c.Refused.WithLabelValues("muted").Set(float64(s.Stats.Muted))
	c.Refused.WithLabelValues("unmapped").Set(float64(s.Stats.Unmapped))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
