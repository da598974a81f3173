// Package console wires the state store, timers, input filter, scenario engine
// and dispatch table into one simulation driven by Tick.
//
// A Console is owned by a single goroutine. Input from other goroutines
// arrives through channels drained by the caller's loop.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/input"
	"github.com/sweeney/spacebus/internal/journal"
	"github.com/sweeney/spacebus/internal/scenario"
	"github.com/sweeney/spacebus/internal/state"
	"github.com/sweeney/spacebus/internal/timer"
)

// DefaultFreqIncrement is the freq_comm step of the frequency buttons.
const DefaultFreqIncrement = 1

// Config holds console behaviour settings.
type Config struct {
	Input         input.Config
	FreqIncrement int64
	Sounds        SoundTable
}

// Recorder persists step transitions and scores.
type Recorder interface {
	RecordStep(ctx context.Context, s journal.Step) error
	RecordScore(ctx context.Context, scenarioName string, score time.Duration) (journal.Rank, error)
}

// Stats counts console-level occurrences.
type Stats struct {
	Vetoes    int
	Muted     int
	Unmapped  int
	StepsWon  int
	StepsLost int
	Games     int
	Input     input.Stats
}

// Console is the simulation.
type Console struct {
	cfg       Config
	store     *state.Store
	bus       *dispatch.Bus
	clock     *timer.Service
	inputs    *timer.Service
	debouncer *input.Debouncer
	engine    *scenario.Engine
	sound     Sound
	recorder  Recorder
	logger    *log.Logger

	queue []input.RawEvent
	stats Stats
	err   error
}

// New builds a console around store. sound may be nil.
func New(cfg Config, store *state.Store, sound Sound, logger *log.Logger) *Console {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if sound == nil {
		sound = NewLogSound(logger)
	}
	if cfg.FreqIncrement == 0 {
		cfg.FreqIncrement = DefaultFreqIncrement
	}
	c := &Console{
		cfg:    cfg,
		store:  store,
		bus:    dispatch.NewBus(logger),
		clock:  timer.New("scenario", logger),
		inputs: timer.New("input", logger),
		sound:  sound,
		logger: logger,
	}
	c.engine = scenario.New(store, c.clock, c.bus, logger)
	c.debouncer = input.NewDebouncer(cfg.Input, c.inputs, c.emitInput, logger)

	p := policy{c: c}
	store.SetGuard(p)
	store.AddListener(p)
	store.SetNotifier(c.engine)
	c.registerActions()
	return c
}

// Store returns the state store.
func (c *Console) Store() *state.Store { return c.store }

// Bus returns the dispatch table so observers can tap it.
func (c *Console) Bus() *dispatch.Bus { return c.bus }

// Engine returns the scenario engine.
func (c *Console) Engine() *scenario.Engine { return c.engine }

// Clock returns the scenario timer service.
func (c *Console) Clock() *timer.Service { return c.clock }

// SetRecorder attaches a journal. nil detaches it.
func (c *Console) SetRecorder(r Recorder) { c.recorder = r }

// Stats returns a copy of the counters.
func (c *Console) Stats() Stats {
	s := c.stats
	s.Input = c.debouncer.Stats()
	return s
}

// Snapshot is a point-in-time view of the simulation.
type Snapshot struct {
	Scenario      string
	State         scenario.State
	Step          string
	Index         int
	Steps         int
	Paused        bool
	Elapsed       time.Duration
	SimTime       time.Duration
	MainPower     float64
	SolarPower    float64
	PendingTimers int
	Stats         Stats
}

// Snapshot captures the current simulation state.
func (c *Console) Snapshot() Snapshot {
	s := Snapshot{
		Scenario:      c.engine.Name(),
		State:         c.engine.State(),
		Index:         c.engine.CurrentIndex(),
		Steps:         len(c.engine.Steps()),
		Paused:        c.engine.Paused(),
		SimTime:       c.clock.Now(),
		MainPower:     c.store.Number("main_power"),
		SolarPower:    c.store.Number("sp_power"),
		PendingTimers: c.clock.Pending() + c.inputs.Pending(),
		Stats:         c.Stats(),
	}
	if st := c.engine.Current(); st != nil {
		s.Step = st.ID
	}
	if s.State != scenario.Idle {
		s.Elapsed = c.engine.Elapsed()
	}
	return s
}

// Err returns the first fatal error raised by a scenario action.
func (c *Console) Err() error { return c.err }

// LoadScenario reads a descriptor. A missing or unreadable file leaves an
// empty scenario and is only logged; a descriptor that fails validation is
// returned as an error.
func (c *Console) LoadScenario(path string) error {
	sc, err := scenario.Load(path, c.store, c.cfg.Sounds.Length)
	if errors.Is(err, scenario.ErrInvalidScenario) {
		return err
	}
	if err != nil {
		c.logger.Printf("console: %v, continuing with an empty scenario", err)
		sc = &scenario.Scenario{}
	}
	c.engine.Load(sc)
	return nil
}

// SetScenario installs an already parsed scenario.
func (c *Console) SetScenario(sc *scenario.Scenario) { c.engine.Load(sc) }

// Input queues raw events for the next Tick.
func (c *Console) Input(events ...input.RawEvent) {
	c.queue = append(c.queue, events...)
}

// Tick advances simulated time by dt on both clocks, then filters the input
// queued since the previous tick.
func (c *Console) Tick(dt time.Duration) {
	c.clock.Advance(dt)
	c.inputs.Advance(dt)
	if len(c.queue) > 0 {
		q := c.queue
		c.queue = nil
		c.debouncer.Poll(q...)
	}
}

func (c *Console) emitInput(ev input.Event) {
	c.bus.Publish(dispatch.Event{Kind: dispatch.Input, Args: dispatch.Args{
		"channel": ev.Channel,
		"value":   ev.Value,
		"axis":    ev.Axis,
	}})
}

// Reset returns the console to its power-on state: the scenario is idle,
// pending input is dropped and every cell holds its default.
func (c *Console) Reset() {
	c.logger.Printf("console: reset")
	c.engine.Reset()
	c.debouncer.Reset()
	c.queue = nil
	c.store.Reset()
	c.sound.StopMusic()
}

// StartGame resets the console and starts the scenario from its first step.
func (c *Console) StartGame() error {
	c.Reset()
	if err := c.engine.StartGame(); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	c.stats.Games++
	return nil
}

// Restart is StartGame under the name the admin interface uses.
func (c *Console) Restart() error { return c.StartGame() }

// ForceFulfill completes the current step.
func (c *Console) ForceFulfill() { c.engine.ForceFulfill() }

// Pause freezes the scenario clock. Input keeps flowing.
func (c *Console) Pause() { c.engine.Pause() }

// Resume restarts the scenario clock.
func (c *Console) Resume() { c.engine.Resume() }

// Goto jumps to the step with the given id.
func (c *Console) Goto(id string) error { return c.engine.Goto(id) }

func (c *Console) set(name string, v state.Value, opts state.SetOptions) {
	if _, err := c.store.Set(name, v, opts); err != nil {
		c.logger.Printf("console: set %s: %v", name, err)
	}
}

// setBool drives a boolean cell to want. Switch cells toggle, so they are only
// written when they differ.
func (c *Console) setBool(name string, want bool, opts state.SetOptions) {
	if !c.store.Has(name) {
		c.logger.Printf("console: no cell %s", name)
		return
	}
	if c.store.IsOn(name) != want {
		c.set(name, state.Bool(want), opts)
	}
}

func (c *Console) fail(err error) {
	c.logger.Printf("console: %v", err)
	if c.err == nil {
		c.err = err
	}
}
