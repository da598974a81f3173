package state

import "fmt"

// Kind classifies where a cell's value comes from.
type Kind uint8

const (
	Software Kind = iota
	Button
	Axis
	Switch
	Indicator
)

var kindNames = map[Kind]string{
	Software:  "software",
	Button:    "button",
	Axis:      "axis",
	Switch:    "switch",
	Indicator: "indicator",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a table name ("switch", "axis", ...) to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown cell kind %q", s)
}

// Hardware reports whether cells of this kind are fed by physical input.
func (k Kind) Hardware() bool {
	return k == Button || k == Axis || k == Switch
}

// Spec is one row of the declarative cell table.
type Spec struct {
	Name    string
	Default Value
	Kind    Kind
	// Indicator is the LED bound to the cell, or -1.
	Indicator int
	// Power is added to main power while the cell is on. Zero means none.
	Power float64
	// HardwareKey is the input channel feeding the cell, if any.
	HardwareKey string
}

// Cell is a named value in the store.
type Cell struct {
	spec  Spec
	value Value
}

func (c *Cell) Name() string        { return c.spec.Name }
func (c *Cell) Kind() Kind          { return c.spec.Kind }
func (c *Cell) Value() Value        { return c.value }
func (c *Cell) Default() Value      { return c.spec.Default }
func (c *Cell) Power() float64      { return c.spec.Power }
func (c *Cell) HardwareKey() string { return c.spec.HardwareKey }

// IndicatorID returns the bound LED, if any.
func (c *Cell) IndicatorID() (int, bool) {
	return c.spec.Indicator, c.spec.Indicator >= 0
}
