// Package gpio reads the panel's digital inputs and drives its LEDs.
// The real implementation uses the Linux GPIO character device.
// The fakes allow testing without hardware.
package gpio

import (
	"sort"

	"github.com/sweeney/spacebus/internal/input"
)

// Reader reads the levels of the panel's input lines.
type Reader interface {
	// Read returns the logical level of every configured channel.
	// The raw GPIO values are inverted: raw active = logical OFF.
	Read() (map[string]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Indicators drives LED lines by indicator id.
type Indicators interface {
	SetIndicator(id int, on bool)
	Close() error
}

// DefaultChip is the GPIO chip on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Edges turns level samples into raw input events.
// The first sample only establishes the baseline.
type Edges struct {
	last      map[string]bool
	baselined bool
}

// Events returns one raw event per channel whose level changed since the
// previous sample, in channel name order.
func (e *Edges) Events(levels map[string]bool) []input.RawEvent {
	if !e.baselined {
		e.last = make(map[string]bool, len(levels))
		for ch, on := range levels {
			e.last[ch] = on
		}
		e.baselined = true
		return nil
	}

	names := make([]string, 0, len(levels))
	for ch := range levels {
		names = append(names, ch)
	}
	sort.Strings(names)

	var out []input.RawEvent
	for _, ch := range names {
		on := levels[ch]
		if prev, ok := e.last[ch]; ok && prev == on {
			continue
		}
		e.last[ch] = on
		v := 0.0
		if on {
			v = 1
		}
		out = append(out, input.RawEvent{Channel: ch, Value: v})
	}
	return out
}

// Baselined reports whether a first sample has been seen.
func (e *Edges) Baselined() bool { return e.baselined }
