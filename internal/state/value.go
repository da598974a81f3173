package state

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Type identifies which field of a Value is meaningful.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	}
	return "invalid"
}

// Value is the tagged union stored in a cell.
// The zero Value is invalid.
type Value struct {
	typ Type
	b   bool
	i   int64
	f   float64
	s   string
}

func Bool(b bool) Value       { return Value{typ: TypeBool, b: b} }
func Int(i int64) Value       { return Value{typ: TypeInt, i: i} }
func Float(f float64) Value   { return Value{typ: TypeFloat, f: f} }
func String(s string) Value   { return Value{typ: TypeString, s: s} }
func (v Value) Type() Type    { return v.typ }
func (v Value) IsValid() bool { return v.typ != TypeInvalid }

// Toggled returns the opposite of v in its own type: false/true for bools,
// 0/1 for numbers and "0"/"1" for strings.
func (v Value) Toggled() Value {
	on := v.On()
	switch v.typ {
	case TypeInt:
		if on {
			return Int(0)
		}
		return Int(1)
	case TypeFloat:
		if v.f != 0 {
			return Float(0)
		}
		return Float(1)
	case TypeString:
		if on {
			return String("0")
		}
		return String("1")
	}
	return Bool(!on)
}

// Number returns the numeric value for int and float values.
func (v Value) Number() (float64, bool) {
	switch v.typ {
	case TypeInt:
		return float64(v.i), true
	case TypeFloat:
		return v.f, true
	}
	return 0, false
}

// On reports whether the value counts as "on": true, a nonzero integer, or "1".
func (v Value) On() bool {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeInt:
		return v.i != 0
	case TypeString:
		return v.s == "1"
	}
	return false
}

// Equal reports whether two values carry the same payload.
// Ints and floats compare numerically.
func (v Value) Equal(o Value) bool {
	if a, ok := v.Number(); ok {
		b, ok := o.Number()
		return ok && a == b
	}
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeBool:
		return v.b == o.b
	case TypeString:
		return v.s == o.s
	}
	return true
}

func (v Value) String() string {
	switch v.typ {
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case TypeString:
		return v.s
	}
	return "<invalid>"
}

// Interface returns the payload as a plain Go value.
func (v Value) Interface() any {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeInt:
		return v.i
	case TypeFloat:
		return v.f
	case TypeString:
		return v.s
	}
	return nil
}

// MarshalJSON encodes the payload as a JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// FromAny converts a decoded YAML or JSON scalar into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint64:
		return Int(int64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	}
	return Value{}, fmt.Errorf("unsupported value %v (%T)", x, x)
}

// Compatible reports whether v may be stored in a cell currently holding o.
// Ints and floats are interchangeable.
func (v Value) Compatible(o Value) bool {
	if _, ok := v.Number(); ok {
		_, ok := o.Number()
		return ok
	}
	return v.typ == o.typ
}
