package input

import (
	"io"
	"log"
	"math"
	"time"
)

// DefaultFirewall is the minimum spacing between raw events on one channel.
const DefaultFirewall = 50 * time.Millisecond

// Config controls the debouncer.
type Config struct {
	// Firewall is the window used for channels without an override.
	Firewall time.Duration
	// ChannelFirewall overrides the window per channel.
	ChannelFirewall map[string]time.Duration
	// AxisStep quantizes axis readings; zero means round to integers.
	AxisStep float64
	// Ignored channels are dropped before any bookkeeping.
	Ignored []string
}

// Debouncer turns bursts of raw events into at most one emission per
// firewall window and channel.
type Debouncer struct {
	cfg     Config
	ignored map[string]bool
	sched   Scheduler
	emit    func(Event)
	entries map[string]*entry
	stats   Stats
	logger  *log.Logger
}

// NewDebouncer creates a debouncer that schedules emissions on sched and
// delivers them to emit.
func NewDebouncer(cfg Config, sched Scheduler, emit func(Event), logger *log.Logger) *Debouncer {
	if cfg.Firewall <= 0 {
		cfg.Firewall = DefaultFirewall
	}
	if cfg.AxisStep <= 0 {
		cfg.AxisStep = 1
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	ignored := make(map[string]bool, len(cfg.Ignored))
	for _, ch := range cfg.Ignored {
		ignored[ch] = true
	}
	return &Debouncer{
		cfg:     cfg,
		ignored: ignored,
		sched:   sched,
		emit:    emit,
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Stats returns a copy of the counters.
func (d *Debouncer) Stats() Stats { return d.stats }

func (d *Debouncer) firewall(ch string) time.Duration {
	if fw, ok := d.cfg.ChannelFirewall[ch]; ok && fw > 0 {
		return fw
	}
	return d.cfg.Firewall
}

func (d *Debouncer) quantize(v float64) float64 {
	return math.Round(v/d.cfg.AxisStep) * d.cfg.AxisStep
}

// Poll feeds raw events in arrival order.
//
// A raw event arriving while its channel still has a pending emission is a
// ghost: the pending emission is cancelled and replaced by one carrying the
// new value at the original deadline. Otherwise an emission is scheduled one
// firewall window later, provided the previous raw event on the channel is
// older than the window. The channel's last event time is updated for every
// raw event.
func (d *Debouncer) Poll(events ...RawEvent) {
	for _, ev := range events {
		d.poll(ev)
	}
}

func (d *Debouncer) poll(ev RawEvent) {
	d.stats.Raw++
	if d.ignored[ev.Channel] {
		d.stats.Ignored++
		return
	}
	now := d.sched.Now()
	e, ok := d.entries[ev.Channel]
	if !ok {
		e = &entry{}
		d.entries[ev.Channel] = e
	}
	value := ev.Value
	if ev.Axis {
		value = d.quantize(value)
	}
	fw := d.firewall(ev.Channel)

	dt := time.Duration(math.MaxInt64)
	if e.seen {
		dt = now - e.lastTime
	}
	e.seen = true
	e.lastTime = now
	e.lastValue = value

	switch {
	case e.pending != 0 && d.sched.IsAlive(e.pending):
		d.sched.Cancel(e.pending)
		d.stats.Ghosts++
		d.logger.Printf("input: ghost on %s suppressed (%v after previous)", ev.Channel, dt)
		d.schedule(ev.Channel, e, value, ev.Axis, e.deadline-now)
	case dt > fw:
		if ev.Axis && e.haveEmitted && e.emitted == value {
			d.stats.Unchanged++
			return
		}
		d.schedule(ev.Channel, e, value, ev.Axis, fw)
	default:
		d.stats.Suppressed++
		d.logger.Printf("input: %s=%v dropped inside %v window", ev.Channel, value, fw)
	}
}

func (d *Debouncer) schedule(ch string, e *entry, value float64, axis bool, delay time.Duration) {
	e.deadline = d.sched.Now() + delay
	e.pending = d.sched.Schedule(delay, func() {
		e.pending = 0
		if axis && e.haveEmitted && e.emitted == value {
			d.stats.Unchanged++
			return
		}
		e.emitted = value
		e.haveEmitted = true
		d.stats.Emitted++
		d.emit(Event{Channel: ch, Value: value, Axis: axis, At: d.sched.Now()})
	})
}

// Pending reports whether ch has an emission waiting.
func (d *Debouncer) Pending(ch string) bool {
	e, ok := d.entries[ch]
	return ok && e.pending != 0 && d.sched.IsAlive(e.pending)
}

// Reset forgets all channel history and cancels pending emissions.
func (d *Debouncer) Reset() {
	for _, e := range d.entries {
		if e.pending != 0 {
			d.sched.Cancel(e.pending)
		}
	}
	d.entries = make(map[string]*entry)
}
