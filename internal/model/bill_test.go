package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeriodKey(t *testing.T) {
	assert.Equal(t, "2025-01", PeriodKey(2025, 0))
	assert.Equal(t, "2025-12", PeriodKey(2025, 11))
	assert.Equal(t, "2009-10", PeriodKey(2009, 9))
}

func TestBillRecord_HasDetail(t *testing.T) {
	units := int64(10)
	amount := 200.0

	assert.False(t, BillRecord{PeriodKey: "2025-01"}.HasDetail())
	assert.False(t, BillRecord{PeriodKey: "2025-01", Units: &units}.HasDetail())
	assert.True(t, BillRecord{PeriodKey: "2025-01", Units: &units, Amount: &amount}.HasDetail())
}

func TestBillRecord_Clone(t *testing.T) {
	units := int64(10)
	amount := 200.0
	r := BillRecord{PeriodKey: "2025-01", Units: &units, Amount: &amount, Meter: "M1"}

	c := r.Clone()
	*c.Units = 99
	*c.Amount = 1

	assert.Equal(t, int64(10), *r.Units)
	assert.Equal(t, 200.0, *r.Amount)
	assert.Equal(t, "M1", c.Meter)
	assert.Equal(t, "2025", c.Year())
}
