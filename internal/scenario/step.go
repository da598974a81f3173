package scenario

import (
	"fmt"
	"math"
	"time"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/state"
)

// EntryKind tells how an entry was declared in the descriptor.
type EntryKind uint8

const (
	EntryStep EntryKind = iota
	EntryGroup
	EntryEvent
)

func (k EntryKind) String() string {
	switch k {
	case EntryGroup:
		return "group"
	case EntryEvent:
		return "event"
	}
	return "step"
}

// Condition is one end condition of a step: an exact value or an inclusive
// numeric range.
type Condition struct {
	Key      string
	Value    state.Value
	IsRange  bool
	Min, Max float64
}

// Exact builds an exact-match condition.
func Exact(key string, v state.Value) Condition {
	return Condition{Key: key, Value: v}
}

// Between builds a range condition; the bounds may be given in either order.
func Between(key string, a, b float64) Condition {
	return Condition{Key: key, IsRange: true, Min: math.Min(a, b), Max: math.Max(a, b)}
}

// Match reports whether v satisfies the condition.
func (c Condition) Match(v state.Value) bool {
	if c.IsRange {
		f, ok := v.Number()
		return ok && c.Min <= f && f <= c.Max
	}
	return c.Value.Equal(v)
}

// Target is the value written when the condition is forced.
// Ranges force their midpoint.
func (c Condition) Target(current state.Value) state.Value {
	if !c.IsRange {
		return c.Value
	}
	mid := (c.Min + c.Max) / 2
	if current.Type() == state.TypeInt {
		return state.Int(int64(math.Round(mid)))
	}
	return state.Float(mid)
}

func (c Condition) String() string {
	if c.IsRange {
		return fmt.Sprintf("%s in [%v, %v]", c.Key, c.Min, c.Max)
	}
	return fmt.Sprintf("%s == %v", c.Key, c.Value)
}

// Step is one unit of scripted progression.
type Step struct {
	ID     string
	Entry  EntryKind
	Action dispatch.Kind
	Args   dispatch.Args

	Conditions []Condition
	// Timed reports whether Duration applies.
	Timed    bool
	Duration time.Duration
	Delay    time.Duration
	Blocking bool

	WinSound      string
	LooseSound    string
	HintSound string
	// HintTimed reports whether HintTime was given. A hint needs both.
	HintTimed     bool
	HintTime      time.Duration
	FulfillIfLost bool
}

// NonBlocking reports whether the step advances as soon as it starts.
func (s *Step) NonBlocking() bool {
	return !s.Blocking || (len(s.Conditions) == 0 && !s.Timed)
}

func (s *Step) hasHint() bool { return s.HintSound != "" && s.HintTimed }

// payload is the argument map sent with the step's action.
func (s *Step) payload() dispatch.Args {
	args := make(dispatch.Args, len(s.Args)+2)
	for k, v := range s.Args {
		args[k] = v
	}
	args["step"] = s.ID
	if s.Timed {
		args["duration"] = s.Duration.Seconds()
	}
	return args
}
