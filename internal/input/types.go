// Package input filters raw console input into discrete events.
// This package has NO hardware, MQTT or OS dependencies.
// Time is always the simulated time of the Scheduler it is given.
package input

import (
	"time"

	"github.com/sweeney/spacebus/internal/timer"
)

// RawEvent is a single sample from a button, switch or axis channel.
type RawEvent struct {
	Channel string
	// Value is 0 or 1 for digital channels and the raw reading for axes.
	Value float64
	Axis  bool
}

// Event is a filtered input ready to be applied to the state store.
type Event struct {
	Channel string
	Value   float64
	Axis    bool
	At      time.Duration
}

// On reports whether a digital event is a press.
func (e Event) On() bool { return e.Value != 0 }

// Scheduler is the subset of timer.Service the debouncer needs.
type Scheduler interface {
	Now() time.Duration
	Schedule(delay time.Duration, fn func()) timer.Handle
	Cancel(h timer.Handle)
	IsAlive(h timer.Handle) bool
}

// Stats counts what the debouncer did since it was created.
type Stats struct {
	Raw        int
	Emitted    int
	Ghosts     int // pending emissions replaced by a newer event
	Suppressed int // events dropped inside the window with nothing pending
	Unchanged  int // axis readings equal to the last emitted value
	Ignored    int
}

// entry is the per-channel debounce state.
type entry struct {
	lastValue   float64
	lastTime    time.Duration
	seen        bool
	pending     timer.Handle
	deadline    time.Duration
	emitted     float64
	haveEmitted bool
}
