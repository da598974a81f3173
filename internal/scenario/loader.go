package scenario

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/state"
)

// Scenario is a loaded, validated step list.
type Scenario struct {
	Name  string
	Steps []*Step
}

// CellLookup resolves condition keys during validation.
type CellLookup interface {
	Get(name string) (state.Value, error)
}

// SoundLengths reports the playing time of a named sound.
type SoundLengths func(name string) (time.Duration, bool)

type descriptor struct {
	Scenario string  `yaml:"scenario"`
	Steps    []entry `yaml:"steps"`
}

type entry struct {
	Kind          string         `yaml:"kind"`
	ID            string         `yaml:"id"`
	Action        string         `yaml:"action"`
	Args          map[string]any `yaml:"args"`
	Duration      *float64       `yaml:"duration"`
	Delay         *float64       `yaml:"delay"`
	Blocking      *bool          `yaml:"blocking"`
	Conditions    []condition    `yaml:"end_conditions"`
	WinSound      string         `yaml:"win_sound"`
	LooseSound    string         `yaml:"loose_sound"`
	FulfillIfLost bool           `yaml:"fulfill_if_lost"`
	HintSound     string         `yaml:"hint_sound"`
	HintTime      *float64       `yaml:"hint_time"`
}

type condition struct {
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

// instant actions take no time unless the descriptor says otherwise.
var instant = map[dispatch.Kind]bool{
	dispatch.ShuttleStop:     true,
	dispatch.LEDOn:           true,
	dispatch.LEDOff:          true,
	dispatch.StartGame:       true,
	dispatch.ShowScore:       true,
	dispatch.SetScreen:       true,
	dispatch.StopSound:       true,
	dispatch.SoundVolume:     true,
	dispatch.DisableHardware: true,
	dispatch.EnableHardware:  true,
	dispatch.PlayMusic:       true,
}

// restartHold keeps a restart step blocking until the restart handler
// replaces the game.
const restartHold = 100 * time.Second

// maxSeconds is the longest delay a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// seconds converts a descriptor field given in seconds.
func seconds(field string, f float64) (time.Duration, error) {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return 0, fmt.Errorf("%s is not a finite number", field)
	case f < 0:
		return 0, fmt.Errorf("negative %s", field)
	case f > maxSeconds:
		return 0, fmt.Errorf("%s %g exceeds %g seconds", field, f, maxSeconds)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// Load reads a descriptor file. I/O and YAML syntax errors are returned as
// is; validation failures wrap ErrInvalidScenario.
func Load(path string, cells CellLookup, sounds SoundLengths) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data, cells, sounds)
}

// Parse decodes and validates a YAML descriptor.
func Parse(data []byte, cells CellLookup, sounds SoundLengths) (*Scenario, error) {
	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	sc := &Scenario{Name: d.Scenario}
	ids := make(map[string]bool, len(d.Steps))
	events := 0
	var errs []string
	for i, en := range d.Steps {
		s, err := build(en, i, &events, sounds)
		if err == nil {
			err = validate(s, cells)
		}
		if err == nil && ids[s.ID] {
			err = fmt.Errorf("duplicate id %q", s.ID)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		ids[s.ID] = true
		sc.Steps = append(sc.Steps, s)
	}
	for _, s := range sc.Steps {
		if s.Action == dispatch.GotoStep {
			if target := s.Args["id"]; target == nil || !ids[fmt.Sprint(target)] {
				errs = append(errs, fmt.Sprintf("step %q: goto target %v does not exist", s.ID, target))
			}
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScenario, strings.Join(errs, "; "))
	}
	return sc, nil
}

func build(en entry, index int, events *int, sounds SoundLengths) (*Step, error) {
	s := &Step{
		ID:            en.ID,
		Action:        dispatch.Kind(en.Action),
		Args:          dispatch.Args(en.Args),
		Blocking:      true,
		WinSound:      en.WinSound,
		LooseSound:    en.LooseSound,
		HintSound:     en.HintSound,
		FulfillIfLost: en.FulfillIfLost,
	}
	if en.HintTime != nil {
		d, err := seconds("hint_time", *en.HintTime)
		if err != nil {
			return nil, err
		}
		s.HintTimed = true
		s.HintTime = d
	}
	if en.Delay != nil {
		d, err := seconds("delay", *en.Delay)
		if err != nil {
			return nil, err
		}
		s.Delay = d
	}
	if en.Duration != nil {
		d, err := seconds("duration", *en.Duration)
		if err != nil {
			return nil, err
		}
		s.Timed = true
		s.Duration = d
	}
	if en.Blocking != nil {
		s.Blocking = *en.Blocking
	}
	for _, c := range en.Conditions {
		cond, err := parseCondition(c)
		if err != nil {
			return nil, err
		}
		s.Conditions = append(s.Conditions, cond)
	}

	switch en.Kind {
	case "", "step":
		s.Entry = EntryStep
		if s.ID == "" {
			s.ID = fmt.Sprintf("step_%d", index)
		}
	case "group":
		s.Entry = EntryGroup
		s.Action = dispatch.Group
		s.Timed, s.Duration = true, 0
		if s.ID == "" {
			s.ID = fmt.Sprintf("step_%d", index)
		}
	case "event":
		s.Entry = EntryEvent
		s.Blocking = false
		s.Timed, s.Duration = true, 0
		if s.ID == "" {
			s.ID = fmt.Sprintf("event_%d", *events)
		}
		*events++
	default:
		return nil, fmt.Errorf("unknown entry kind %q", en.Kind)
	}
	if s.Action == "" {
		return nil, errors.New("missing action")
	}

	applyDefaults(s, sounds)

	if s.Timed && s.Duration == 0 && s.Delay == 0 && len(s.Conditions) == 0 {
		s.Blocking = false
	}
	return s, nil
}

// applyDefaults gives well-known actions an end rule when the descriptor
// declares neither conditions nor a duration.
func applyDefaults(s *Step, sounds SoundLengths) {
	if len(s.Conditions) > 0 || s.Timed {
		return
	}
	switch {
	case s.Action == dispatch.Collision:
		s.Conditions = []Condition{Exact("alert_screen_unlocked", state.Bool(true))}
	case s.Action == dispatch.ShuttleGoto, s.Action == dispatch.ShuttleGotoStat, s.Action == dispatch.ShuttleLookAt:
		s.Conditions = []Condition{Exact("is_moving", state.Bool(false))}
	case s.Action == dispatch.PlaySound:
		length := s.Args.Seconds("length", -1)
		if length < 0 && sounds != nil {
			if d, ok := sounds(s.Args.String("name", "")); ok {
				length = d
			}
		}
		if length < 0 {
			length = 0
		}
		s.Timed, s.Duration = true, length+time.Second
	case instant[s.Action]:
		s.Timed, s.Duration = true, 0
	case s.Action == dispatch.Restart:
		s.Timed, s.Duration = true, restartHold
	}
}

func parseCondition(c condition) (Condition, error) {
	if c.Key == "" {
		return Condition{}, errors.New("condition without key")
	}
	if list, ok := c.Value.([]any); ok {
		if len(list) != 2 {
			return Condition{}, fmt.Errorf("condition %s: range needs two bounds, got %d", c.Key, len(list))
		}
		lo, err := state.FromAny(list[0])
		if err != nil {
			return Condition{}, fmt.Errorf("condition %s: %w", c.Key, err)
		}
		hi, err := state.FromAny(list[1])
		if err != nil {
			return Condition{}, fmt.Errorf("condition %s: %w", c.Key, err)
		}
		a, okA := lo.Number()
		b, okB := hi.Number()
		if !okA || !okB {
			return Condition{}, fmt.Errorf("condition %s: range bounds must be numbers", c.Key)
		}
		return Between(c.Key, a, b), nil
	}
	v, err := state.FromAny(c.Value)
	if err != nil {
		return Condition{}, fmt.Errorf("condition %s: %w", c.Key, err)
	}
	return Exact(c.Key, v), nil
}

func validate(s *Step, cells CellLookup) error {
	if !dispatch.IsAction(s.Action) {
		return fmt.Errorf("step %q: unknown action %q", s.ID, s.Action)
	}
	if s.Timed && len(s.Conditions) > 0 {
		return fmt.Errorf("step %q: has both a duration and end conditions", s.ID)
	}
	if !s.Blocking && ((s.Timed && s.Duration > 0) || len(s.Conditions) > 0) {
		return fmt.Errorf("step %q: non-blocking step with a duration or end conditions", s.ID)
	}
	if cells == nil {
		return nil
	}
	for _, c := range s.Conditions {
		cur, err := cells.Get(c.Key)
		if err != nil {
			return fmt.Errorf("step %q: %w", s.ID, err)
		}
		if c.IsRange {
			if _, ok := cur.Number(); !ok {
				return fmt.Errorf("step %q: range on non-numeric cell %s", s.ID, c.Key)
			}
			continue
		}
		if !c.Value.Compatible(cur) {
			return fmt.Errorf("step %q: %s expects %s, condition has %s", s.ID, c.Key, cur.Type(), c.Value.Type())
		}
	}
	return nil
}
