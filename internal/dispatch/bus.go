package dispatch

import (
	"fmt"
	"io"
	"log"
	"time"
)

// Args is the keyword payload of an event.
type Args map[string]any

// String returns a string argument or def.
func (a Args) String(key, def string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return def
}

// Float returns a numeric argument or def.
func (a Args) Float(key string, def float64) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Int returns an integer argument or def.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns a boolean argument or def.
func (a Args) Bool(key string, def bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return def
}

// Seconds returns a duration given in (possibly fractional) seconds.
func (a Args) Seconds(key string, def time.Duration) time.Duration {
	f := a.Float(key, -1)
	if f < 0 {
		return def
	}
	return time.Duration(f * float64(time.Second))
}

// Event is a named occurrence with a keyword payload.
type Event struct {
	Kind Kind
	Args Args
}

func (e Event) String() string {
	if len(e.Args) == 0 {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s %v", e.Kind, map[string]any(e.Args))
}

// Handler consumes an event.
type Handler func(Event)

// Bus routes events to the handlers registered for their kind.
//
// Delivery is run-to-completion: an event published from inside a handler is
// queued and delivered after the current handler returns, never nested.
// Not safe for concurrent use.
type Bus struct {
	handlers map[Kind][]Handler
	taps     []Handler
	queue    []Event
	draining bool
	logger   *log.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Bus{
		handlers: make(map[Kind][]Handler),
		logger:   logger,
	}
}

// Handle registers h for events of kind k.
func (b *Bus) Handle(k Kind, h Handler) {
	b.handlers[k] = append(b.handlers[k], h)
}

// Tap registers h for every event, after the kind handlers have run.
func (b *Bus) Tap(h Handler) {
	b.taps = append(b.taps, h)
}

// Handled reports whether any handler is registered for k.
func (b *Bus) Handled(k Kind) bool {
	return len(b.handlers[k]) > 0
}

// Publish queues e and, unless a delivery is already in progress, delivers
// the queue until it is empty.
func (b *Bus) Publish(e Event) {
	b.queue = append(b.queue, e)
	if b.draining {
		return
	}
	b.draining = true
	defer func() { b.draining = false }()
	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue[0] = Event{}
		b.queue = b.queue[1:]
		b.deliver(next)
	}
}

func (b *Bus) deliver(e Event) {
	hs := b.handlers[e.Kind]
	if len(hs) == 0 && len(b.taps) == 0 {
		b.logger.Printf("dispatch: no consumer for %s", e.Kind)
		return
	}
	for _, h := range hs {
		h(e)
	}
	for _, h := range b.taps {
		h(e)
	}
}
