package pricing

import (
	"fmt"

	"github.com/zhaobenny/voltbill/internal/model"
)

// Slab is a contiguous range of units billed at one per-unit rate
type Slab struct {
	Width int64   // Units covered by this slab, 0 = unbounded
	Rate  float64 // Cost per unit
}

// RateSchedule describes a tiered tariff
type RateSchedule struct {
	FixedCharge float64
	Slabs       []Slab
}

// DefaultSchedule returns the standard residential tariff:
// 0-100 @ 5.00, 101-300 @ 7.00, 301-500 @ 9.00, >500 @ 11.00, plus 150.00 fixed.
func DefaultSchedule() RateSchedule {
	return RateSchedule{
		FixedCharge: 150.00,
		Slabs: []Slab{
			{Width: 100, Rate: 5.00},
			{Width: 200, Rate: 7.00},
			{Width: 200, Rate: 9.00},
			{Width: 0, Rate: 11.00},
		},
	}
}

// Calculate computes a bill for the given units using the default schedule
func Calculate(units int64) model.Breakdown {
	return DefaultSchedule().Calculate(units)
}

// Calculate allocates units across the slabs in order, filling each slab
// before moving to the next. The last unbounded slab absorbs whatever is left.
// units must be non-negative; negative values are billed as zero consumption.
func (s RateSchedule) Calculate(units int64) model.Breakdown {
	b := model.Breakdown{
		Units:         units,
		ServiceCharge: s.FixedCharge,
		SlabCosts:     make([]float64, len(s.Slabs)),
	}

	remaining := units
	for i, slab := range s.Slabs {
		if remaining <= 0 {
			break
		}
		inSlab := remaining
		if slab.Width > 0 && inSlab > slab.Width {
			inSlab = slab.Width
		}
		b.SlabCosts[i] = float64(inSlab) * slab.Rate
		remaining -= inSlab
	}

	for _, c := range b.SlabCosts {
		b.UnitCost += c
	}
	b.TotalDue = b.UnitCost + b.ServiceCharge
	return b
}

// SlabLabel renders the unit range covered by the i-th slab, e.g. "101-300" or ">500"
func (s RateSchedule) SlabLabel(i int) string {
	if i < 0 || i >= len(s.Slabs) {
		return ""
	}
	var start int64
	for _, slab := range s.Slabs[:i] {
		start += slab.Width
	}
	if s.Slabs[i].Width == 0 {
		return fmt.Sprintf(">%d", start)
	}
	if i == 0 {
		return fmt.Sprintf("0-%d", s.Slabs[i].Width)
	}
	return fmt.Sprintf("%d-%d", start+1, start+s.Slabs[i].Width)
}
