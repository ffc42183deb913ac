package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSummary_Add(t *testing.T) {
	u1, a1 := int64(80), 550.0
	u2, a2 := int64(250), 1700.1

	var s Summary
	s.Add(BillRecord{PeriodKey: "2025-01", Units: &u1, Amount: &a1})
	s.Add(BillRecord{PeriodKey: "2025-02", Units: &u2, Amount: &a2})
	s.Add(BillRecord{PeriodKey: "2025-03"})

	assert.Equal(t, 3, s.RecordCount)
	assert.Equal(t, 1, s.Unknown)
	assert.Equal(t, int64(330), s.Units)
	assert.True(t, decimal.RequireFromString("2250.1").Equal(s.Amount), s.Amount.String())
	assert.Equal(t, "750.03", s.Average().StringFixed(2))
}

func TestSummary_AverageOfEmpty(t *testing.T) {
	assert.True(t, Summary{}.Average().IsZero())
}
