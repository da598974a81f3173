package console

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/journal"
	"github.com/sweeney/spacebus/internal/scenario"
	"github.com/sweeney/spacebus/internal/state"
)

const (
	gasLeakDelay   = 500 * time.Millisecond
	collisionDelay = time.Second
)

var (
	collisionLEDsOn = []string{
		"defficience_moteur1", "defficience_moteur2", "defficience_moteur3",
		"problem0", "problem1", "problem2",
		"fuite_O2", "alert0", "alert1",
	}
	collisionSwitchesOff = []string{
		"pilote_automatique1", "pilote_automatique2",
		"correction_roulis", "correction_direction", "correction_stabilisation",
		"moteur1", "moteur2", "moteur3",
	}
)

func (c *Console) registerActions() {
	b := c.bus
	b.Handle(dispatch.Input, c.onInput)
	b.Handle(dispatch.LEDOn, func(e dispatch.Event) { c.onLED(e, true) })
	b.Handle(dispatch.LEDOff, func(e dispatch.Event) { c.onLED(e, false) })
	b.Handle(dispatch.ResetLEDs, c.onResetLEDs)
	b.Handle(dispatch.PlaySound, c.onPlaySound)
	b.Handle(dispatch.Hint, func(e dispatch.Event) {
		if name := e.Args.String("name", ""); name != "" {
			c.sound.Play(name, 1, false)
		}
	})
	b.Handle(dispatch.StopSound, func(e dispatch.Event) { c.sound.Stop(e.Args.String("name", "")) })
	b.Handle(dispatch.SoundVolume, func(e dispatch.Event) { c.sound.SetVolume(e.Args.Float("volume", 1)) })
	b.Handle(dispatch.PlayMusic, func(e dispatch.Event) {
		c.sound.PlayMusic(e.Args.String("name", ""), e.Args.Bool("loop", true))
	})
	b.Handle(dispatch.StopMusic, func(dispatch.Event) { c.sound.StopMusic() })
	for _, k := range []dispatch.Kind{dispatch.Group, dispatch.Wait, dispatch.Noop} {
		b.Handle(k, func(dispatch.Event) {})
	}
	b.Handle(dispatch.GotoStep, c.onGoto)
	b.Handle(dispatch.StartGame, c.onStartGame)
	b.Handle(dispatch.Restart, c.onRestart)
	b.Handle(dispatch.EndGame, c.onEndGame)
	b.Handle(dispatch.EnableHardware, func(dispatch.Event) {
		c.set("listen_to_hardware", state.Bool(true), state.SetOptions{Silent: true})
	})
	b.Handle(dispatch.DisableHardware, func(dispatch.Event) {
		c.set("listen_to_hardware", state.Bool(false), state.SetOptions{Silent: true})
	})
	b.Handle(dispatch.Collision, c.onCollision)
	b.Handle(dispatch.SetState, c.onSetState)
	b.Handle(dispatch.StepStarted, c.onStepStarted)
	b.Handle(dispatch.StepEnded, c.onStepEnded)
}

// onInput applies a filtered hardware event to every cell bound to its
// channel. The admin button is always accepted; everything else needs
// listen_to_hardware.
func (c *Console) onInput(e dispatch.Event) {
	ch := e.Args.String("channel", "")
	names := c.store.ByHardwareKey(ch)
	if len(names) == 0 {
		c.stats.Unmapped++
		c.logger.Printf("console: no cell for input %s", ch)
		return
	}
	value := e.Args.Float("value", 0)
	for _, name := range names {
		if name != "admin" && !c.store.IsOn("listen_to_hardware") {
			c.stats.Muted++
			continue
		}
		cell, err := c.store.Cell(name)
		if err != nil {
			c.logger.Printf("console: %v", err)
			continue
		}
		v := state.Bool(value != 0)
		if cell.Kind() == state.Axis {
			v = state.Int(int64(math.Round(value)))
		}
		c.set(name, v, state.SetOptions{})
	}
}

func (c *Console) onLED(e dispatch.Event, on bool) {
	name := e.Args.String("led", "")
	if name == "" {
		c.logger.Printf("console: %s without led", e.Kind)
		return
	}
	c.setBool(name, on, state.SetOptions{Silent: true})
}

// onResetLEDs returns every indicator cell to its default.
func (c *Console) onResetLEDs(dispatch.Event) {
	for _, name := range c.store.Names() {
		cell, err := c.store.Cell(name)
		if err != nil || cell.Kind() != state.Indicator {
			continue
		}
		c.setBool(name, cell.Default().On(), state.SetOptions{Silent: true})
	}
}

func (c *Console) onPlaySound(e dispatch.Event) {
	name := e.Args.String("name", "")
	if name == "" {
		return
	}
	c.sound.Play(name, e.Args.Float("volume", 1), e.Args.Bool("loop", false))
}

// onGoto jumps inside the running scenario. A missing target is fatal.
func (c *Console) onGoto(e dispatch.Event) {
	id := e.Args.String("id", "")
	if err := c.engine.Goto(id); err != nil {
		c.fail(fmt.Errorf("goto_step: %w", err))
	}
}

// onStartGame starts the scenario unless it is already running; a running
// scenario cannot restart itself through this action.
func (c *Console) onStartGame(dispatch.Event) {
	if c.engine.State() == scenario.Running {
		c.logger.Printf("console: start_game ignored, scenario already running")
		return
	}
	if err := c.StartGame(); err != nil {
		c.logger.Printf("console: %v", err)
	}
}

func (c *Console) onRestart(dispatch.Event) {
	if err := c.Restart(); err != nil {
		c.logger.Printf("console: %v", err)
	}
}

// onEndGame ranks the score and asks the screens to show it.
func (c *Console) onEndGame(e dispatch.Event) {
	score := e.Args.Seconds("score", 0)
	name := e.Args.String("scenario", c.engine.Name())
	rank := journal.Rank{Position: 1, Total: 1}
	if c.recorder != nil {
		r, err := c.recorder.RecordScore(context.Background(), name, score)
		if err != nil {
			c.logger.Printf("console: record score: %v", err)
		} else {
			rank = r
		}
	}
	c.logger.Printf("console: game over, score %v, rank %d/%d", score, rank.Position, rank.Total)
	c.bus.Publish(dispatch.Event{Kind: dispatch.ShowScore, Args: dispatch.Args{
		"scenario": name,
		"score":    score.Seconds(),
		"position": rank.Position,
		"total":    rank.Total,
	}})
}

// onCollision starts the collision sequence: failure LEDs at once, the gas
// leak half a second later and the power failure after a second.
func (c *Console) onCollision(dispatch.Event) {
	c.set("collision_occurred", state.Bool(true), state.SetOptions{Silent: true})
	c.engine.AddEvent(gasLeakDelay, func() {
		c.bus.Publish(dispatch.Event{Kind: dispatch.PlaySound, Args: dispatch.Args{"name": "gaz_leak", "loop": true}})
	})
	for _, name := range collisionLEDsOn {
		c.setBool(name, true, state.SetOptions{Silent: true})
	}
	c.setBool("antenne_com", false, state.SetOptions{Silent: true})
	c.engine.AddEvent(collisionDelay, c.collisionDamage)
}

func (c *Console) collisionDamage() {
	quiet := state.SetOptions{Silent: true, NoPower: true, NoScenario: true, Force: true}
	for _, name := range collisionSwitchesOff {
		c.setBool(name, false, quiet)
	}
	c.set("offset_ps_x", state.Int(2), quiet)
	c.set("offset_ps_y", state.Int(1), quiet)
	c.set("main_O2", state.Float(0.1), quiet)
	if err := c.store.UpdatePower(); err != nil {
		c.logger.Printf("console: %v", err)
	}
}

func (c *Console) onSetState(e dispatch.Event) {
	name := e.Args.String("key", "")
	v, err := state.FromAny(e.Args["value"])
	if err != nil {
		c.logger.Printf("console: set_state %s: %v", name, err)
		return
	}
	c.set(name, v, state.SetOptions{Silent: e.Args.Bool("silent", false)})
}

func (c *Console) onStepStarted(e dispatch.Event) {
	c.record(e, journal.Started)
}

func (c *Console) onStepEnded(e dispatch.Event) {
	outcome := journal.Lost
	if e.Args.Bool("win", false) {
		outcome = journal.Won
		c.stats.StepsWon++
	} else {
		c.stats.StepsLost++
	}
	c.record(e, outcome)
}

func (c *Console) record(e dispatch.Event, outcome journal.Outcome) {
	if c.recorder == nil {
		return
	}
	err := c.recorder.RecordStep(context.Background(), journal.Step{
		Scenario: c.engine.Name(),
		Step:     e.Args.String("step", ""),
		Index:    e.Args.Int("index", 0),
		Outcome:  outcome,
		At:       c.clock.Now(),
	})
	if err != nil {
		c.logger.Printf("console: journal: %v", err)
	}
}
