package console

import (
	"strings"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/state"
)

var corrections = []string{"correction_roulis", "correction_direction", "correction_stabilisation"}

func isCorrection(name string) bool {
	for _, c := range corrections {
		if c == name {
			return true
		}
	}
	return false
}

// policy vetoes forbidden mutations and applies the follow-up rules that tie
// hardware cells to the rest of the console.
type policy struct {
	c *Console
}

// CanSet implements state.Guard.
func (p policy) CanSet(name string, v state.Value) bool {
	s := p.c.store
	switch {
	case isCorrection(name) && v.On() && !s.IsOn("pilote_automatique"):
		p.c.veto(name, "")
		return false
	case strings.HasPrefix(name, "batterie") && name != "batteries" && !s.IsOn("batteries"):
		p.c.veto(name, "batterie_wrong")
		return false
	case strings.HasPrefix(name, "moteur") && v.On() && s.IsOn("collision_occurred"):
		p.c.veto(name, "engine_fails")
		return false
	}
	return true
}

// StateChanged implements state.Listener.
func (p policy) StateChanged(ch state.Change) {
	if ch.Reset {
		return
	}
	c := p.c
	if !ch.Silent && ch.New.Type() == state.TypeBool {
		suffix := "_off"
		if ch.New.On() {
			suffix = "_on"
		}
		c.cue(ch.Name + suffix)
	}

	opts := state.SetOptions{Silent: ch.Silent}
	s := c.store
	switch {
	case ch.Name == "sp_orientation_h":
		if d, _ := ch.New.Number(); d != 0 {
			c.set("offset_ps_x", state.Int(clampOffset(s.Number("offset_ps_x")-d)), opts)
		}
	case ch.Name == "sp_orientation_v":
		if d, _ := ch.New.Number(); d != 0 {
			c.set("offset_ps_y", state.Int(clampOffset(s.Number("offset_ps_y")+d)), opts)
		}
	case ch.Name == "freq_moins" && ch.New.On():
		c.set("freq_comm", state.Int(int64(s.Number("freq_comm"))-c.cfg.FreqIncrement), opts)
	case ch.Name == "freq_plus" && ch.New.On():
		c.set("freq_comm", state.Int(int64(s.Number("freq_comm"))+c.cfg.FreqIncrement), opts)
	case ch.Name == "pilote_automatique1" || ch.Name == "pilote_automatique2":
		other := "pilote_automatique1"
		if ch.Name == other {
			other = "pilote_automatique2"
		}
		if ch.New.On() && s.IsOn(other) {
			c.set("pilote_automatique", state.Bool(true), opts)
		} else if !ch.New.On() && !s.IsOn(other) {
			c.set("pilote_automatique", state.Bool(false), opts)
		}
	case ch.Name == "pilote_automatique" && !ch.New.On():
		for _, name := range corrections {
			c.setBool(name, false, opts)
		}
		c.set("full_pilote_automatique", state.Bool(false), state.SetOptions{Silent: true})
	case isCorrection(ch.Name):
		all := true
		for _, name := range corrections {
			all = all && s.IsOn(name)
		}
		c.set("full_pilote_automatique", state.Bool(all), state.SetOptions{Silent: true})
	case ch.Name == "offset_ps_x" || ch.Name == "offset_ps_y":
		nominal := s.Number("offset_ps_x") == 0 && s.Number("offset_ps_y") == 0
		if nominal {
			c.cue("sp_nominal")
		}
		c.set("ps_nominal", state.Bool(nominal), state.SetOptions{Silent: true})
	}
}

func clampOffset(v float64) int64 {
	if v > 10 {
		v = 10
	}
	if v < -10 {
		v = -10
	}
	return int64(v)
}

// cue plays a sound effect through the dispatch table.
func (c *Console) cue(name string) {
	c.bus.Publish(dispatch.Event{Kind: dispatch.PlaySound, Args: dispatch.Args{"name": name, "cue": true}})
}

func (c *Console) veto(name, sound string) {
	c.stats.Vetoes++
	c.logger.Printf("console: %s refused", name)
	if sound != "" {
		c.cue(sound)
	}
}
