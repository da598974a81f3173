// Package state holds the console's named cells and keeps derived power values
// consistent with them.
// The store is not safe for concurrent use; it is owned by the simulation loop.
package state

import (
	"fmt"
	"io"
	"log"
)

// SetOptions modifies the cascade run by Set. The zero value runs all of it.
type SetOptions struct {
	// Silent suppresses audible cues for the change.
	Silent bool
	// NoPower skips the power recomputation.
	NoPower bool
	// NoScenario skips notifying the scenario engine.
	NoScenario bool
	// Force bypasses the guard.
	Force bool
}

// Change describes one applied mutation.
type Change struct {
	Name   string
	Kind   Kind
	Old    Value
	New    Value
	Silent bool
	// Reset is true for changes produced by Store.Reset.
	Reset bool
}

// Guard may veto a mutation before it is applied.
type Guard interface {
	CanSet(name string, v Value) bool
}

// Indicators drives the LEDs bound to cells.
type Indicators interface {
	SetIndicator(id int, on bool)
}

// Listener observes applied changes.
type Listener interface {
	StateChanged(c Change)
}

// Notifier is told that the store changed so it can re-check conditions.
type Notifier interface {
	StateUpdated()
}

// Store is the registry of named cells.
type Store struct {
	cells     map[string]*Cell
	order     []string
	byKey     map[string][]string
	power     PowerCells
	guard     Guard
	leds      Indicators
	notifier  Notifier
	listeners []Listener
	logger    *log.Logger
}

// New builds a store from a cell table. Names must be unique.
func New(specs []Spec) (*Store, error) {
	s := &Store{
		cells:  make(map[string]*Cell, len(specs)),
		byKey:  make(map[string][]string),
		power:  DefaultPowerCells(),
		logger: log.New(io.Discard, "", 0),
	}
	for _, sp := range specs {
		if _, dup := s.cells[sp.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCell, sp.Name)
		}
		if !sp.Default.IsValid() {
			return nil, fmt.Errorf("%w: %s has no default", ErrInvalidValue, sp.Name)
		}
		s.cells[sp.Name] = &Cell{spec: sp, value: sp.Default}
		s.order = append(s.order, sp.Name)
		if sp.HardwareKey != "" {
			s.byKey[sp.HardwareKey] = append(s.byKey[sp.HardwareKey], sp.Name)
		}
	}
	return s, nil
}

// SetLogger replaces the logger used for state traces.
func (s *Store) SetLogger(l *log.Logger) { s.logger = l }

// SetGuard installs the veto policy.
func (s *Store) SetGuard(g Guard) { s.guard = g }

// SetIndicators installs the LED driver.
func (s *Store) SetIndicators(i Indicators) { s.leds = i }

// SetNotifier installs the scenario notification target.
func (s *Store) SetNotifier(n Notifier) { s.notifier = n }

// AddListener registers an observer of applied changes.
func (s *Store) AddListener(l Listener) { s.listeners = append(s.listeners, l) }

// Get returns the value of a cell.
func (s *Store) Get(name string) (Value, error) {
	c, ok := s.cells[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownCell, name)
	}
	return c.value, nil
}

// Cell returns the named cell.
func (s *Store) Cell(name string) (*Cell, error) {
	c, ok := s.cells[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCell, name)
	}
	return c, nil
}

// Has reports whether name is registered.
func (s *Store) Has(name string) bool {
	_, ok := s.cells[name]
	return ok
}

// IsOn reports whether the cell holds true, a nonzero integer, or "1".
// Unknown cells are off.
func (s *Store) IsOn(name string) bool {
	c, ok := s.cells[name]
	return ok && c.value.On()
}

// Number returns a numeric cell value, or zero.
func (s *Store) Number(name string) float64 {
	c, ok := s.cells[name]
	if !ok {
		return 0
	}
	f, _ := c.value.Number()
	return f
}

// ByHardwareKey returns the cells fed by an input channel, in table order.
func (s *Store) ByHardwareKey(key string) []string {
	names := s.byKey[key]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Names returns cell names in table order.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Dump returns a copy of every cell value.
func (s *Store) Dump() map[string]Value {
	out := make(map[string]Value, len(s.cells))
	for name, c := range s.cells {
		out[name] = c.value
	}
	return out
}

// Set requests a new value for a cell and reports whether it changed.
//
// Switch cells ignore v and invert their current value. Setting the current
// value is a no-op. A vetoed request leaves the store untouched and is not an
// error. Otherwise the value is stored, the bound indicator follows it,
// listeners run, power is recomputed and the scenario is notified, each
// step subject to opts.
func (s *Store) Set(name string, v Value, opts SetOptions) (bool, error) {
	c, ok := s.cells[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownCell, name)
	}
	if c.spec.Kind == Switch {
		v = c.value.Toggled()
	}
	if !v.Compatible(c.value) {
		return false, fmt.Errorf("%w: %s is %s, got %s", ErrInvalidValue, name, c.value.Type(), v.Type())
	}
	if v.Equal(c.value) {
		return false, nil
	}
	if !opts.Force && s.guard != nil && !s.guard.CanSet(name, v) {
		s.logger.Printf("state: %s=%s vetoed", name, v)
		return false, nil
	}

	old := c.value
	c.value = v
	s.logger.Printf("state: %s %s -> %s", name, old, v)

	if id, ok := c.IndicatorID(); ok && s.leds != nil {
		s.leds.SetIndicator(id, v.On())
	}

	change := Change{Name: name, Kind: c.spec.Kind, Old: old, New: v, Silent: opts.Silent}
	for _, l := range s.listeners {
		l.StateChanged(change)
	}

	if !opts.NoPower {
		if err := s.UpdatePower(); err != nil {
			return true, err
		}
	}
	if !opts.NoScenario && s.notifier != nil {
		s.notifier.StateUpdated()
	}
	return true, nil
}

// Reset restores every cell to its default in one pass: raw values first,
// then indicators, then power. Listeners receive the resulting changes with
// Reset set; the scenario is not notified.
func (s *Store) Reset() {
	var changes []Change
	for _, name := range s.order {
		c := s.cells[name]
		if !c.value.Equal(c.spec.Default) || c.value.Type() != c.spec.Default.Type() {
			changes = append(changes, Change{Name: name, Kind: c.spec.Kind, Old: c.value, New: c.spec.Default, Silent: true, Reset: true})
		}
		c.value = c.spec.Default
	}
	if s.leds != nil {
		for _, name := range s.order {
			c := s.cells[name]
			if id, ok := c.IndicatorID(); ok {
				s.leds.SetIndicator(id, c.value.On())
			}
		}
	}
	for _, pc := range s.computePower() {
		c := s.cells[pc.Name]
		if !c.value.Equal(pc.New) {
			changes = append(changes, Change{Name: pc.Name, Kind: c.spec.Kind, Old: c.value, New: pc.New, Silent: true, Reset: true})
			c.value = pc.New
		}
	}
	for _, ch := range changes {
		for _, l := range s.listeners {
			l.StateChanged(ch)
		}
	}
}
