package state

import "math"

// PowerCells names the cells the power budget reads and writes.
type PowerCells struct {
	Max     string
	OffsetX string
	OffsetY string
	Solar   string
	Main    string
}

// DefaultPowerCells returns the names used by the default cell table.
func DefaultPowerCells() PowerCells {
	return PowerCells{
		Max:     "sp_max_power",
		OffsetX: "offset_ps_x",
		OffsetY: "offset_ps_y",
		Solar:   "sp_power",
		Main:    "main_power",
	}
}

// SolarPower is the panel output for the given misalignment, rounded to
// three decimals.
func SolarPower(max, x, y float64) float64 {
	return math.Round(max/math.Sqrt(1+x*x+y*y)*1000) / 1000
}

type powerWrite struct {
	Name string
	New  Value
}

// computePower returns the solar and main values implied by the other cells.
// It returns nothing when the table lacks the power cells.
func (s *Store) computePower() []powerWrite {
	p := s.power
	for _, n := range []string{p.Max, p.OffsetX, p.OffsetY, p.Solar, p.Main} {
		if !s.Has(n) {
			return nil
		}
	}
	solar := SolarPower(s.Number(p.Max), s.Number(p.OffsetX), s.Number(p.OffsetY))
	main := solar
	for _, name := range s.order {
		c := s.cells[name]
		if c.spec.Power != 0 && c.value.On() {
			main += c.spec.Power
		}
	}
	return []powerWrite{
		{Name: p.Solar, New: Float(solar)},
		{Name: p.Main, New: Float(main)},
	}
}

// UpdatePower recomputes solar and main power and writes them through Set
// without triggering another recomputation.
func (s *Store) UpdatePower() error {
	for _, w := range s.computePower() {
		if _, err := s.Set(w.Name, w.New, SetOptions{Silent: true, NoPower: true}); err != nil {
			return err
		}
	}
	return nil
}
