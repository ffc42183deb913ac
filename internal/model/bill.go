package model

import "fmt"

// BillRecord is one calculated bill for one account in one calendar period
type BillRecord struct {
	PeriodKey string   // YYYY-MM
	Units     *int64   // nil when the record predates detailed storage
	Amount    *float64 // nil when the record predates detailed storage
	Meter     string   // Optional meter identifier, compared case-insensitively
}

// HasDetail reports whether both units and amount are known
func (r BillRecord) HasDetail() bool {
	return r.Units != nil && r.Amount != nil
}

// Year returns the year portion of the period key
func (r BillRecord) Year() string {
	if len(r.PeriodKey) < 4 {
		return r.PeriodKey
	}
	return r.PeriodKey[:4]
}

// Clone returns a deep copy so callers cannot mutate store-owned values
func (r BillRecord) Clone() BillRecord {
	c := r
	if r.Units != nil {
		u := *r.Units
		c.Units = &u
	}
	if r.Amount != nil {
		a := *r.Amount
		c.Amount = &a
	}
	return c
}

// Breakdown is the itemized result of a bill calculation
type Breakdown struct {
	Units         int64
	ServiceCharge float64
	SlabCosts     []float64 // One entry per slab of the schedule, in order
	UnitCost      float64   // Sum of SlabCosts
	TotalDue      float64   // UnitCost + ServiceCharge
}

// Slab returns the cost of the i-th slab, or 0 when the schedule has fewer slabs
func (b Breakdown) Slab(i int) float64 {
	if i < 0 || i >= len(b.SlabCosts) {
		return 0
	}
	return b.SlabCosts[i]
}

// PeriodKey formats a year and zero-based month as YYYY-MM.
// The month is not range checked.
func PeriodKey(year, zeroBasedMonth int) string {
	return fmt.Sprintf("%d-%02d", year, zeroBasedMonth+1)
}
