//go:build linux

package gpio

import (
	"fmt"
	"sort"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads panel inputs from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines map[string]*gpiocdev.Line
}

// NewRealReader requests every line in lines (channel name to offset) as an
// input with pull-up; panel contacts pull the line low when closed.
func NewRealReader(chipName string, lines map[string]int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealReader{chip: chip, lines: make(map[string]*gpiocdev.Line, len(lines))}

	names := make([]string, 0, len(lines))
	for ch := range lines {
		names = append(names, ch)
	}
	sort.Strings(names)
	for _, ch := range names {
		l, err := chip.RequestLine(lines[ch], gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", ch, lines[ch], err)
		}
		r.lines[ch] = l
	}
	return r, nil
}

// Read returns the logical level of every line.
// Inverts raw GPIO: raw low (0) = logical ON.
func (r *RealReader) Read() (map[string]bool, error) {
	out := make(map[string]bool, len(r.lines))
	for ch, l := range r.lines {
		raw, err := l.Value()
		if err != nil {
			return nil, fmt.Errorf("read %s pin: %w", ch, err)
		}
		out[ch] = raw == 0
	}
	return out, nil
}

// Close releases GPIO resources.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing.
func (r *RealReader) Close() error {
	var errs []error
	for ch, l := range r.lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", ch, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", ch, err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealIndicators drives LED lines.
type RealIndicators struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
	fails int
}

// NewRealIndicators requests every line in leds (indicator id to offset) as
// an output driven low.
func NewRealIndicators(chipName string, leds map[int]int) (*RealIndicators, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	ri := &RealIndicators{chip: chip, lines: make(map[int]*gpiocdev.Line, len(leds))}
	for id, offset := range leds {
		l, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			ri.Close()
			return nil, fmt.Errorf("request led %d pin %d: %w", id, offset, err)
		}
		ri.lines[id] = l
	}
	return ri, nil
}

// SetIndicator drives the LED bound to id. Ids without a line are ignored;
// write errors are counted, never returned, so a faulty LED cannot stall
// the simulation.
func (ri *RealIndicators) SetIndicator(id int, on bool) {
	l, ok := ri.lines[id]
	if !ok {
		return
	}
	v := 0
	if on {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		ri.fails++
	}
}

// Failures returns the number of failed LED writes.
func (ri *RealIndicators) Failures() int { return ri.fails }

// Close turns every LED off and releases the lines.
func (ri *RealIndicators) Close() error {
	var errs []error
	for id, l := range ri.lines {
		_ = l.SetValue(0)
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close led %d: %w", id, err))
		}
	}
	ri.lines = nil
	if ri.chip != nil {
		if err := ri.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		ri.chip = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
