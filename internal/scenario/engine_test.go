package scenario

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/state"
	"github.com/sweeney/spacebus/internal/timer"
)

type harness struct {
	store  *state.Store
	clock  *timer.Service
	bus    *dispatch.Bus
	engine *Engine
	events []dispatch.Event
}

func newHarness(t *testing.T, steps ...*Step) *harness {
	t.Helper()
	store, err := state.New([]state.Spec{
		{Name: "o2", Default: state.Int(50), Indicator: -1},
		{Name: "power", Default: state.Float(0), Indicator: -1},
		{Name: "door", Default: state.Bool(false), Indicator: -1},
	})
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{store: store, clock: timer.New("scenario", nil), bus: dispatch.NewBus(nil)}
	h.bus.Tap(func(e dispatch.Event) { h.events = append(h.events, e) })
	h.engine = New(store, h.clock, h.bus, nil)
	store.SetNotifier(h.engine)
	h.engine.Load(&Scenario{Name: "test", Steps: steps})
	return h
}

func (h *harness) count(k dispatch.Kind) int {
	n := 0
	for _, e := range h.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func (h *harness) started() []string {
	var ids []string
	for _, e := range h.events {
		if e.Kind == dispatch.StepStarted {
			ids = append(ids, e.Args.String("step", ""))
		}
	}
	return ids
}

func timed(id string, action dispatch.Kind, d time.Duration) *Step {
	return &Step{ID: id, Action: action, Timed: true, Duration: d, Blocking: true}
}

func instantStep(id string, action dispatch.Kind) *Step {
	return &Step{ID: id, Action: action, Timed: true, Blocking: false}
}

func conditional(id string, conds ...Condition) *Step {
	return &Step{ID: id, Action: dispatch.Wait, Conditions: conds, Blocking: true}
}

func TestTimedStepThenInstantStep(t *testing.T) {
	h := newHarness(t,
		timed("s1", dispatch.Noop, 2*time.Second),
		instantStep("s2", dispatch.LEDOn),
	)

	if err := h.engine.StartGame(); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(2010 * time.Millisecond)

	if got := h.started(); len(got) != 2 || got[1] != "s2" {
		t.Fatalf("started = %v, want [s1 s2]", got)
	}
	if n := h.count(dispatch.LEDOn); n != 1 {
		t.Errorf("led_on fired %d times, want 1", n)
	}
	if n := h.clock.Pending(); n != 0 {
		t.Errorf("%d timers still pending", n)
	}
	if h.engine.State() != Ended || h.count(dispatch.EndGame) != 1 {
		t.Errorf("state = %v, end_game = %d", h.engine.State(), h.count(dispatch.EndGame))
	}
}

func TestTimedStepDoesNotEndEarly(t *testing.T) {
	h := newHarness(t, timed("s1", dispatch.Noop, 2*time.Second), instantStep("s2", dispatch.LEDOn))
	h.engine.StartGame()

	h.clock.Advance(1999 * time.Millisecond)
	if h.engine.CurrentIndex() != 0 || h.count(dispatch.LEDOn) != 0 {
		t.Fatalf("advanced before timeout: index=%d", h.engine.CurrentIndex())
	}
	if h.engine.CanEndStep(true) {
		t.Error("CanEndStep(true) with live end timer")
	}
	if !h.engine.CanEndStep(false) {
		t.Error("CanEndStep(false) should be true for a timed step")
	}
}

func TestConditionFulfillment(t *testing.T) {
	h := newHarness(t,
		conditional("s1", Exact("o2", state.Int(100)), Between("power", 60, 40)),
		timed("s2", dispatch.Noop, time.Hour),
	)
	h.engine.StartGame()

	tests := []struct {
		o2    int64
		power float64
		want  bool
	}{
		{50, 50, false},
		{100, 39.9, false},
		{100, 60.1, false},
		{100, 40, true},
		{100, 60, true},
	}
	for _, tt := range tests {
		h.store.Set("o2", state.Int(tt.o2), state.SetOptions{NoScenario: true})
		h.store.Set("power", state.Float(tt.power), state.SetOptions{NoScenario: true})
		if got := h.engine.CanEndStep(true); got != tt.want {
			t.Errorf("o2=%d power=%v: CanEndStep = %v, want %v", tt.o2, tt.power, got, tt.want)
		}
	}
}

func TestStateChangeEndsStepAsWin(t *testing.T) {
	s1 := conditional("s1", Exact("door", state.Bool(true)))
	s1.WinSound = "bravo"
	s1.LooseSound = "dommage"
	h := newHarness(t, s1, timed("s2", dispatch.Noop, time.Hour))
	h.engine.StartGame()

	h.store.Set("door", state.Bool(true), state.SetOptions{})

	if h.engine.CurrentIndex() != 1 {
		t.Fatalf("index = %d, want 1", h.engine.CurrentIndex())
	}
	var sounds []string
	for _, e := range h.events {
		if e.Kind == dispatch.PlaySound {
			sounds = append(sounds, e.Args.String("name", ""))
		}
	}
	if len(sounds) != 1 || sounds[0] != "bravo" {
		t.Errorf("sounds = %v, want [bravo]", sounds)
	}
}

func TestDelayedActionAndHint(t *testing.T) {
	s1 := timed("s1", dispatch.PlaySound, 5*time.Second)
	s1.Delay = time.Second
	s1.HintSound = "psst"
	s1.HintTimed = true
	s1.HintTime = 2 * time.Second
	h := newHarness(t, s1)
	h.engine.StartGame()

	if h.count(dispatch.PlaySound) != 0 {
		t.Fatal("action fired before delay")
	}
	h.clock.Advance(time.Second)
	if h.count(dispatch.PlaySound) != 1 {
		t.Fatalf("action not fired at delay")
	}
	h.clock.Advance(1999 * time.Millisecond)
	if h.count(dispatch.Hint) != 0 {
		t.Fatal("hint fired before delay+hint_time")
	}
	h.clock.Advance(time.Millisecond)
	if h.count(dispatch.Hint) != 1 || h.count(dispatch.PlaySound) != 1 {
		t.Fatalf("hint not fired at delay+hint_time")
	}
	h.clock.Advance(2999 * time.Millisecond)
	if h.engine.State() != Running {
		t.Fatal("ended before delay+duration")
	}
	h.clock.Advance(time.Millisecond)
	if h.engine.State() != Ended {
		t.Errorf("state = %v, want ended at delay+duration", h.engine.State())
	}
}

func TestEndCancelsStepTimers(t *testing.T) {
	s1 := conditional("s1", Exact("door", state.Bool(true)))
	s1.HintSound = "psst"
	s1.HintTimed = true
	s1.HintTime = 10 * time.Second
	h := newHarness(t, s1, timed("s2", dispatch.Noop, time.Hour))
	h.engine.StartGame()

	h.engine.End(true)
	h.clock.Advance(20 * time.Second)
	for _, e := range h.events {
		if e.Kind == dispatch.Hint {
			t.Fatal("hint of ended step fired")
		}
	}
}

func TestHintNeedsHintTime(t *testing.T) {
	s1 := conditional("s1", Exact("door", state.Bool(true)))
	s1.HintSound = "hint_door"
	h := newHarness(t, s1)
	h.engine.StartGame()

	h.clock.Advance(time.Millisecond)
	h.clock.Advance(time.Hour)
	if n := h.count(dispatch.Hint); n != 0 {
		t.Errorf("hint fired %d times without a hint time", n)
	}
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", h.clock.Pending())
	}
}

func TestHintAtZeroHintTime(t *testing.T) {
	s1 := conditional("s1", Exact("door", state.Bool(true)))
	s1.HintSound = "hint_door"
	s1.HintTimed = true
	h := newHarness(t, s1)
	h.engine.StartGame()

	h.clock.Advance(0)
	if n := h.count(dispatch.Hint); n != 1 {
		t.Errorf("hint fired %d times, want 1 at step start", n)
	}
}

func TestForceFulfillWritesConditions(t *testing.T) {
	h := newHarness(t,
		conditional("s1", Exact("o2", state.Int(100)), Between("power", 40, 60)),
		timed("s2", dispatch.Noop, time.Hour),
	)
	h.engine.StartGame()
	h.engine.ForceFulfill()

	if h.engine.CurrentIndex() != 1 {
		t.Fatalf("index = %d, want 1", h.engine.CurrentIndex())
	}
	if v, _ := h.store.Get("o2"); !v.Equal(state.Int(100)) {
		t.Errorf("o2 = %v, want 100", v)
	}
	if f := h.store.Number("power"); f < 40 || f > 60 {
		t.Errorf("power = %v, want within [40, 60]", f)
	}
}

func TestForceFulfillWithoutConditionsLoses(t *testing.T) {
	s1 := timed("s1", dispatch.Noop, time.Hour)
	s1.LooseSound = "dommage"
	h := newHarness(t, s1, timed("s2", dispatch.Noop, time.Hour))
	h.engine.StartGame()
	h.engine.ForceFulfill()

	if h.engine.CurrentIndex() != 1 {
		t.Fatalf("index = %d, want 1", h.engine.CurrentIndex())
	}
	for _, e := range h.events {
		if e.Kind == dispatch.StepEnded && e.Args.Bool("win", true) {
			t.Error("forced condition-less step reported a win")
		}
	}
}

func TestFulfillIfLost(t *testing.T) {
	s1 := conditional("s1", Exact("door", state.Bool(true)))
	s1.FulfillIfLost = true
	h := newHarness(t, s1, timed("s2", dispatch.Noop, time.Hour))
	h.engine.StartGame()

	h.engine.End(false)
	if !h.store.IsOn("door") {
		t.Error("lost step with fulfill_if_lost did not force its condition")
	}
	if h.engine.CurrentIndex() != 1 {
		t.Errorf("index = %d, want 1", h.engine.CurrentIndex())
	}
}

func TestGotoUnknownLeavesIndex(t *testing.T) {
	h := newHarness(t, timed("s1", dispatch.Noop, time.Hour), timed("s2", dispatch.Noop, time.Hour))
	h.engine.StartGame()
	h.engine.End(true)

	err := h.engine.Goto("nonexistent_id")
	if !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("err = %v, want ErrUnknownStep", err)
	}
	if h.engine.CurrentIndex() != 1 || h.engine.Current() == nil || h.engine.Current().ID != "s2" {
		t.Errorf("index = %d after failed goto, want 1", h.engine.CurrentIndex())
	}
}

func TestGotoJumpsAndCancelsEvents(t *testing.T) {
	h := newHarness(t,
		timed("s1", dispatch.Noop, time.Hour),
		timed("s2", dispatch.Noop, time.Hour),
		&Step{ID: "branch", Entry: EntryGroup, Action: dispatch.Group, Timed: true},
		timed("s4", dispatch.Noop, time.Hour),
	)
	h.engine.StartGame()
	fired := false
	h.engine.AddEvent(time.Second, func() { fired = true })

	if err := h.engine.Goto("branch"); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(2 * time.Second)

	if fired {
		t.Error("scenario event survived goto")
	}
	if h.engine.Current() == nil || h.engine.Current().ID != "s4" {
		t.Fatalf("current = %v, want s4 after group advanced", h.engine.Current())
	}
	if got := h.started(); len(got) != 3 || got[1] != "branch" {
		t.Errorf("started = %v", got)
	}
}

func TestEventEntryFiresAfterAdvancing(t *testing.T) {
	ev := &Step{ID: "event_0", Entry: EntryEvent, Action: dispatch.PlaySound, Timed: true, Delay: 3 * time.Second}
	h := newHarness(t, ev, timed("s2", dispatch.Noop, time.Hour))
	h.engine.StartGame()

	h.clock.Advance(0)
	if h.engine.Current() == nil || h.engine.Current().ID != "s2" {
		t.Fatalf("event entry did not advance immediately")
	}
	h.clock.Advance(3 * time.Second)
	if h.count(dispatch.PlaySound) != 1 {
		t.Errorf("detached event action fired %d times", h.count(dispatch.PlaySound))
	}
}

func TestPauseFreezesStepTimer(t *testing.T) {
	h := newHarness(t, timed("s1", dispatch.Noop, 10*time.Second), timed("s2", dispatch.Noop, time.Hour))
	h.engine.StartGame()

	h.clock.Advance(3 * time.Second)
	h.engine.Pause()
	h.clock.Advance(time.Minute)
	if h.engine.CurrentIndex() != 0 {
		t.Fatal("step ended while paused")
	}
	h.engine.Resume()
	h.clock.Advance(7*time.Second - time.Millisecond)
	if h.engine.CurrentIndex() != 0 {
		t.Fatal("step ended before remaining time")
	}
	h.clock.Advance(time.Millisecond)
	if h.engine.CurrentIndex() != 1 {
		t.Errorf("index = %d, want 1", h.engine.CurrentIndex())
	}
}

func TestStartGameWithoutSteps(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.StartGame(); !errors.Is(err, ErrEmptyScenario) {
		t.Errorf("err = %v, want ErrEmptyScenario", err)
	}
	if h.engine.State() != Idle {
		t.Errorf("state = %v, want idle", h.engine.State())
	}
}

func TestEndGameCarriesScore(t *testing.T) {
	h := newHarness(t, timed("s1", dispatch.Noop, 90*time.Second))
	h.clock.Advance(time.Hour)
	h.engine.StartGame()
	h.clock.Advance(90 * time.Second)

	for _, e := range h.events {
		if e.Kind == dispatch.EndGame {
			if got := e.Args.Float("score", 0); got != 90 {
				t.Errorf("score = %v, want 90", got)
			}
			return
		}
	}
	t.Fatal("no end_game event")
}
