// Package scenario sequences the steps of a mission against the state store.
package scenario

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/state"
	"github.com/sweeney/spacebus/internal/timer"
)

// State is the engine's lifecycle state.
type State uint8

const (
	Idle State = iota
	Running
	Ended
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Ended:
		return "ended"
	}
	return "idle"
}

// Timers is the pausable simulated-time scheduler the engine runs on.
type Timers interface {
	Now() time.Duration
	Schedule(delay time.Duration, fn func()) timer.Handle
	Cancel(h timer.Handle)
	IsAlive(h timer.Handle) bool
	Pause()
	Resume()
	Paused() bool
}

// Cells is the state store as seen by the engine.
type Cells interface {
	Get(name string) (state.Value, error)
	Set(name string, v state.Value, opts state.SetOptions) (bool, error)
}

// Publisher delivers action events.
type Publisher interface {
	Publish(e dispatch.Event)
}

// purpose names the slot a step timer occupies.
type purpose uint8

const (
	endTimer purpose = iota
	actionTimer
	hintTimer
	advanceTimer
	numTimers
)

// run is the live instance of a started step.
type run struct {
	index       int
	step        *Step
	timers      [numTimers]timer.Handle
	autoAdvance bool
	ended       bool
}

// stepTimer is the continuation stored in the timer service for a run.
type stepTimer struct {
	e *Engine
	r *run
	p purpose
}

func (t stepTimer) fire() {
	t.r.timers[t.p] = 0
	switch t.p {
	case endTimer:
		if t.e.live == t.r {
			t.e.logger.Printf("scenario: step %q timed out", t.r.step.ID)
			t.e.end(false, true)
		}
	case actionTimer:
		t.e.publishAction(t.r.step)
	case hintTimer:
		t.e.bus.Publish(dispatch.Event{Kind: dispatch.Hint, Args: dispatch.Args{"name": t.r.step.HintSound, "step": t.r.step.ID}})
	case advanceTimer:
		if t.e.live == t.r {
			t.e.advance(t.r)
		}
	}
}

// Engine drives a loaded scenario.
// Not safe for concurrent use; all calls happen on the simulation loop.
type Engine struct {
	cells   Cells
	timers  Timers
	bus     Publisher
	logger  *log.Logger
	name    string
	steps   []*Step
	current int
	state   State
	live    *run
	events  map[timer.Handle]struct{}
	started time.Duration
}

// New creates an idle engine with no steps.
func New(cells Cells, timers Timers, bus Publisher, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		cells:  cells,
		timers: timers,
		bus:    bus,
		logger: logger,
		events: make(map[timer.Handle]struct{}),
	}
}

// Load replaces the step list and resets the engine to Idle.
func (e *Engine) Load(sc *Scenario) {
	e.Reset()
	if sc == nil {
		e.name, e.steps = "", nil
		return
	}
	e.name = sc.Name
	e.steps = sc.Steps
	e.logger.Printf("scenario: loaded %q with %d steps", sc.Name, len(sc.Steps))
}

// Name returns the loaded scenario's name.
func (e *Engine) Name() string { return e.name }

// Steps returns the loaded steps.
func (e *Engine) Steps() []*Step { return e.steps }

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// CurrentIndex returns the index of the current step.
func (e *Engine) CurrentIndex() int { return e.current }

// Current returns the live step, or nil.
func (e *Engine) Current() *Step {
	if e.live == nil {
		return nil
	}
	return e.live.step
}

// Paused reports whether scenario timers are paused.
func (e *Engine) Paused() bool { return e.timers.Paused() }

// Elapsed returns simulated time since the game started.
func (e *Engine) Elapsed() time.Duration { return e.timers.Now() - e.started }

// StartGame moves the engine to Running and starts the first step.
func (e *Engine) StartGame() error {
	if len(e.steps) == 0 {
		return ErrEmptyScenario
	}
	e.Reset()
	e.started = e.timers.Now()
	e.state = Running
	e.logger.Printf("scenario: starting %q", e.name)
	e.start(0)
	return nil
}

// Reset cancels every timer the engine owns and returns to Idle.
// The step list is kept.
func (e *Engine) Reset() {
	if e.live != nil {
		e.cancelRun(e.live)
		e.live.ended = true
		e.live = nil
	}
	e.cancelEvents()
	e.timers.Resume()
	e.current = 0
	e.state = Idle
}

func (e *Engine) start(i int) {
	s := e.steps[i]
	r := &run{index: i, step: s}
	e.current = i
	e.live = r
	e.logger.Printf("scenario: starting step %q (%d/%d, action %s, delay %v)", s.ID, i+1, len(e.steps), s.Action, s.Delay)

	// Action and hint go first so that they win ties against the end timer.
	if s.Delay > 0 {
		e.schedule(r, actionTimer, s.Delay)
	}
	if s.hasHint() {
		e.schedule(r, hintTimer, s.Delay+s.HintTime)
	}
	if s.Timed && !s.NonBlocking() {
		e.schedule(r, endTimer, s.Delay+s.Duration)
	}
	if s.NonBlocking() {
		r.autoAdvance = true
		e.schedule(r, advanceTimer, 0)
	}

	e.bus.Publish(dispatch.Event{Kind: dispatch.StepStarted, Args: dispatch.Args{"step": s.ID, "index": i, "action": string(s.Action)}})
	if s.Delay == 0 {
		e.publishAction(s)
	}
}

func (e *Engine) schedule(r *run, p purpose, delay time.Duration) {
	t := stepTimer{e: e, r: r, p: p}
	r.timers[p] = e.timers.Schedule(delay, t.fire)
}

func (e *Engine) publishAction(s *Step) {
	if s.Action == "" {
		return
	}
	e.bus.Publish(dispatch.Event{Kind: s.Action, Args: s.payload()})
}

func (e *Engine) cancelRun(r *run) {
	for p, h := range r.timers {
		if h != 0 {
			e.timers.Cancel(h)
			r.timers[p] = 0
		}
	}
}

func (e *Engine) cancelEvents() {
	for h := range e.events {
		e.timers.Cancel(h)
	}
	e.events = make(map[timer.Handle]struct{})
}

// AddEvent schedules fn on the scenario clock. Such events are paused with
// the scenario and cancelled by Goto and Reset.
func (e *Engine) AddEvent(delay time.Duration, fn func()) timer.Handle {
	for h := range e.events {
		if !e.timers.IsAlive(h) {
			delete(e.events, h)
		}
	}
	h := e.timers.Schedule(delay, fn)
	e.events[h] = struct{}{}
	return h
}

// advance leaves a non-blocking step. Its pending action and hint keep
// running as detached events.
func (e *Engine) advance(r *run) {
	for _, p := range []purpose{actionTimer, hintTimer} {
		if h := r.timers[p]; h != 0 {
			e.events[h] = struct{}{}
		}
	}
	r.ended = true
	e.live = nil
	e.startNext(r.index)
}

func (e *Engine) startNext(from int) {
	next := from + 1
	if next < len(e.steps) {
		e.start(next)
		return
	}
	e.current = len(e.steps)
	e.live = nil
	e.state = Ended
	score := e.Elapsed()
	e.logger.Printf("scenario: %q finished in %v", e.name, score)
	e.bus.Publish(dispatch.Event{Kind: dispatch.EndGame, Args: dispatch.Args{"scenario": e.name, "score": score.Seconds()}})
}

// CanEndStep reports whether the live step may end now.
//
// Steps with conditions can end when every condition matches. Timed steps
// without conditions can end once their end timer has fired, or at once when
// waitIfFulfilled is false. A step that is already advancing on its own
// never reports true.
func (e *Engine) CanEndStep(waitIfFulfilled bool) bool {
	r := e.live
	if r == nil || r.ended || r.autoAdvance {
		return false
	}
	if len(r.step.Conditions) > 0 {
		for _, c := range r.step.Conditions {
			v, err := e.cells.Get(c.Key)
			if err != nil || !c.Match(v) {
				return false
			}
		}
		return true
	}
	if waitIfFulfilled {
		return !e.timers.IsAlive(r.timers[endTimer])
	}
	return true
}

// StateUpdated re-checks the live step after a state change.
func (e *Engine) StateUpdated() {
	if e.state != Running {
		return
	}
	if e.CanEndStep(true) {
		e.end(true, true)
	}
}

// End ends the live step and starts the next one.
func (e *Engine) End(win bool) {
	e.end(win, true)
}

func (e *Engine) end(win, startNext bool) {
	r := e.live
	if r == nil || r.ended {
		return
	}
	r.ended = true
	e.cancelRun(r)
	e.live = nil

	s := r.step
	if win {
		e.logger.Printf("scenario: step %q complete", s.ID)
		e.playSound(s.WinSound, s.ID)
	} else {
		e.logger.Printf("scenario: step %q lost", s.ID)
		e.playSound(s.LooseSound, s.ID)
		if s.FulfillIfLost {
			e.force(s)
		}
	}
	e.bus.Publish(dispatch.Event{Kind: dispatch.StepEnded, Args: dispatch.Args{"step": s.ID, "index": r.index, "win": win}})

	if startNext {
		e.startNext(r.index)
	}
}

func (e *Engine) playSound(name, step string) {
	if name == "" {
		return
	}
	e.bus.Publish(dispatch.Event{Kind: dispatch.PlaySound, Args: dispatch.Args{"name": name, "step": step}})
}

// force writes every unmet condition of s into the store, bypassing the guard.
func (e *Engine) force(s *Step) {
	for _, c := range s.Conditions {
		cur, err := e.cells.Get(c.Key)
		if err != nil {
			e.logger.Printf("scenario: cannot force %s: %v", c.Key, err)
			continue
		}
		if c.Match(cur) {
			continue
		}
		e.logger.Printf("scenario: forcing %s", c)
		if _, err := e.cells.Set(c.Key, c.Target(cur), state.SetOptions{NoPower: true, Force: true}); err != nil {
			e.logger.Printf("scenario: force %s: %v", c.Key, err)
		}
	}
}

// ForceFulfill completes the live step. Conditions are forced into the store,
// which ends the step through the normal notification path; steps without
// conditions are ended as lost.
func (e *Engine) ForceFulfill() {
	r := e.live
	if r == nil || r.ended {
		return
	}
	e.logger.Printf("scenario: fulfilling step %q", r.step.ID)
	if len(r.step.Conditions) == 0 {
		e.end(false, true)
		return
	}
	e.force(r.step)
	if e.live == r && e.CanEndStep(false) {
		e.end(true, true)
	}
}

// Goto ends the live step without advancing, cancels pending scenario events
// and starts the step with the given id. An unknown id leaves the engine
// untouched.
func (e *Engine) Goto(id string) error {
	idx := -1
	for i, s := range e.steps {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStep, id)
	}
	e.logger.Printf("scenario: goto %q", id)
	e.end(false, false)
	e.cancelEvents()
	if e.state == Idle {
		e.started = e.timers.Now()
	}
	e.state = Running
	e.startNext(idx - 1)
	return nil
}

// Pause freezes every scenario timer that has not fired yet.
func (e *Engine) Pause() {
	e.logger.Printf("scenario: pause")
	e.timers.Pause()
}

// Resume restarts timers frozen by Pause with their remaining delays.
func (e *Engine) Resume() {
	e.logger.Printf("scenario: resume")
	e.timers.Resume()
}
