// Package timer runs one-shot callbacks against a simulated clock.
// Nothing here reads the wall clock: time only moves when Advance is called.
package timer

import (
	"io"
	"log"
	"sort"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

type entry struct {
	id        Handle
	when      time.Duration
	seq       uint64
	fn        func()
	remaining time.Duration
	paused    bool
	cancelled bool
}

// Service schedules callbacks relative to its simulated "now".
// Callbacks fire in non-decreasing target-time order; ties fire in the order
// they were scheduled. Not safe for concurrent use.
type Service struct {
	name    string
	now     time.Duration
	nextID  Handle
	seq     uint64
	queue   []*entry // ordered by (when, seq)
	live    map[Handle]*entry
	paused  []*entry // snapshot taken by Pause, in firing order
	isPause bool
	logger  *log.Logger
}

// New creates a service at simulated time zero. The name prefixes log lines.
func New(name string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		name:   name,
		live:   make(map[Handle]*entry),
		logger: logger,
	}
}

// Now returns the current simulated time.
func (s *Service) Now() time.Duration { return s.now }

// Pending returns the number of live handles, paused ones included.
func (s *Service) Pending() int { return len(s.live) }

// Paused reports whether a pause snapshot is held.
func (s *Service) Paused() bool { return s.isPause }

// Schedule registers fn to run once, delay after now. Negative delays are
// treated as zero.
func (s *Service) Schedule(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}
	s.nextID++
	e := &entry{id: s.nextID, fn: fn}
	s.live[e.id] = e
	s.enqueue(e, s.now+delay)
	return e.id
}

func (s *Service) enqueue(e *entry, when time.Duration) {
	s.seq++
	e.when = when
	e.seq = s.seq
	// First index strictly after when keeps equal times in insertion order.
	idx := sort.Search(len(s.queue), func(i int) bool {
		return s.queue[i].when > when
	})
	s.queue = append(s.queue, nil)
	copy(s.queue[idx+1:], s.queue[idx:])
	s.queue[idx] = e
}

// Cancel stops a callback from firing. Unknown, fired or already cancelled
// handles are ignored. Paused handles are removed from the pause snapshot.
func (s *Service) Cancel(h Handle) {
	e, ok := s.live[h]
	if !ok {
		return
	}
	e.cancelled = true
	delete(s.live, h)
}

// IsAlive reports whether h is scheduled or paused and has not fired.
func (s *Service) IsAlive(h Handle) bool {
	_, ok := s.live[h]
	return ok
}

// Remaining returns how long until h fires. Paused handles report the delay
// captured at pause time.
func (s *Service) Remaining(h Handle) (time.Duration, bool) {
	e, ok := s.live[h]
	if !ok {
		return 0, false
	}
	if e.paused {
		return e.remaining, true
	}
	return e.when - s.now, true
}

// Pause captures every timer whose fire time has not been reached, with its
// remaining delay, and takes it off the clock. Timers scheduled after Pause
// run normally. Calling Pause twice is a no-op.
func (s *Service) Pause() {
	if s.isPause {
		return
	}
	s.isPause = true
	kept := s.queue[:0]
	for _, e := range s.queue {
		switch {
		case e.cancelled:
		case e.when <= s.now:
			kept = append(kept, e)
		default:
			e.paused = true
			e.remaining = e.when - s.now
			s.paused = append(s.paused, e)
		}
	}
	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = nil
	}
	s.queue = kept
	s.logger.Printf("%s: paused %d timers at %v", s.name, len(s.paused), s.now)
}

// Resume puts paused timers back on the clock with their remaining delays.
// Handles keep their identity. Without a prior Pause it does nothing.
func (s *Service) Resume() {
	if !s.isPause {
		return
	}
	s.isPause = false
	n := 0
	for _, e := range s.paused {
		if e.cancelled {
			continue
		}
		e.paused = false
		s.enqueue(e, s.now+e.remaining)
		e.remaining = 0
		n++
	}
	s.paused = nil
	s.logger.Printf("%s: resumed %d timers at %v", s.name, n, s.now)
}

// Advance moves the clock forward by d, firing every callback due on the way.
// The clock reads each callback's target time while it runs, and callbacks
// scheduled during Advance fire in the same pass if they fall due before the
// new time.
func (s *Service) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	target := s.now + d
	for {
		e := s.popDue(target)
		if e == nil {
			break
		}
		if e.when > s.now {
			s.now = e.when
		}
		delete(s.live, e.id)
		if e.fn != nil {
			e.fn()
		}
	}
	s.now = target
}

func (s *Service) popDue(target time.Duration) *entry {
	for len(s.queue) > 0 {
		e := s.queue[0]
		if e.cancelled {
			s.queue[0] = nil
			s.queue = s.queue[1:]
			continue
		}
		if e.when > target {
			return nil
		}
		s.queue[0] = nil
		s.queue = s.queue[1:]
		return e
	}
	return nil
}
