package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		units    int64
		slabs    []float64
		unitCost float64
		total    float64
	}{
		{"zero units", 0, []float64{0, 0, 0, 0}, 0, 150},
		{"within first slab", 80, []float64{400, 0, 0, 0}, 400, 550},
		{"first slab boundary", 100, []float64{500, 0, 0, 0}, 500, 650},
		{"into second slab", 250, []float64{500, 1050, 0, 0}, 1550, 1700},
		{"second slab boundary", 300, []float64{500, 1400, 0, 0}, 1900, 2050},
		{"third slab boundary", 500, []float64{500, 1400, 1800, 0}, 3700, 3850},
		{"all four slabs", 600, []float64{500, 1400, 1800, 1100}, 4800, 4950},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Calculate(tt.units)
			require.Len(t, b.SlabCosts, 4)
			assert.Equal(t, tt.slabs, b.SlabCosts)
			assert.InDelta(t, tt.unitCost, b.UnitCost, 1e-9)
			assert.InDelta(t, tt.total, b.TotalDue, 1e-9)
			assert.Equal(t, 150.0, b.ServiceCharge)
			assert.Equal(t, tt.units, b.Units)
		})
	}
}

func TestCalculate_MatchesWaterfallRule(t *testing.T) {
	rates := []float64{5, 7, 9, 11}
	widths := []int64{100, 200, 200}

	for units := int64(0); units <= 1200; units += 7 {
		expected := 150.0
		remaining := units
		for i, rate := range rates {
			take := remaining
			if i < len(widths) && take > widths[i] {
				take = widths[i]
			}
			expected += float64(take) * rate
			remaining -= take
		}
		assert.InDelta(t, expected, Calculate(units).TotalDue, 1e-9, "units=%d", units)
	}
}

func TestCalculate_NegativeUnitsBillNothing(t *testing.T) {
	b := Calculate(-5)
	assert.Equal(t, 150.0, b.TotalDue)
	assert.Equal(t, 0.0, b.UnitCost)
}

func TestCalculate_CustomSchedule(t *testing.T) {
	s := RateSchedule{
		FixedCharge: 10,
		Slabs:       []Slab{{Width: 50, Rate: 1}, {Width: 0, Rate: 2}},
	}
	b := s.Calculate(70)
	assert.Equal(t, []float64{50, 40}, b.SlabCosts)
	assert.Equal(t, 100.0, b.TotalDue)
	assert.Equal(t, 0.0, b.Slab(5))
}

func TestSlabLabel(t *testing.T) {
	s := DefaultSchedule()
	assert.Equal(t, "0-100", s.SlabLabel(0))
	assert.Equal(t, "101-300", s.SlabLabel(1))
	assert.Equal(t, "301-500", s.SlabLabel(2))
	assert.Equal(t, ">500", s.SlabLabel(3))
	assert.Equal(t, "", s.SlabLabel(4))
}
