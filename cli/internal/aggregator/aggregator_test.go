package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhaobenny/voltbill/internal/model"
)

func rec(period string, units int64, amount float64) model.BillRecord {
	return model.BillRecord{PeriodKey: period, Units: &units, Amount: &amount}
}

func keys(records []model.BillRecord) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.PeriodKey)
	}
	return out
}

func sample() []model.BillRecord {
	return []model.BillRecord{
		rec("2024-11", 80, 550),
		rec("2025-01", 250, 1700),
		{PeriodKey: "2024-12"},
		rec("2025-03", 600, 4950),
	}
}

func TestFilterRecords_ByYear(t *testing.T) {
	assert.Equal(t, []string{"2025-01", "2025-03"}, keys(FilterRecords(sample(), Options{Year: "2025"})))
	assert.Len(t, FilterRecords(sample(), Options{}), 4)
	assert.Empty(t, FilterRecords(sample(), Options{Year: "2019"}))
}

func TestFilterRecords_ByPeriods(t *testing.T) {
	got := FilterRecords(sample(), Options{Periods: []string{"2024-12", "2025-03", "2030-01"}})
	assert.Equal(t, []string{"2024-12", "2025-03"}, keys(got))

	got = FilterRecords(sample(), Options{Year: "2024", Periods: []string{"2024-12", "2025-03"}})
	assert.Equal(t, []string{"2024-12"}, keys(got))
}

func TestNewestFirst(t *testing.T) {
	in := sample()
	out := NewestFirst(in)
	assert.Equal(t, []string{"2025-03", "2025-01", "2024-12", "2024-11"}, keys(out))
	// Input order is untouched
	assert.Equal(t, "2024-11", in[0].PeriodKey)
}

func TestYears(t *testing.T) {
	assert.Equal(t, []string{"2025", "2024"}, Years(sample()))
	assert.Empty(t, Years(nil))
}

func TestByYear(t *testing.T) {
	results := ByYear(sample())
	require.Len(t, results, 2)

	assert.Equal(t, "2025", results[0].Key)
	assert.Equal(t, 2, results[0].RecordCount)
	assert.Equal(t, int64(850), results[0].Units)
	assert.Equal(t, "6650.00", results[0].Amount.StringFixed(2))

	assert.Equal(t, "2024", results[1].Key)
	assert.Equal(t, 2, results[1].RecordCount)
	assert.Equal(t, 1, results[1].Unknown)
	assert.Equal(t, int64(80), results[1].Units)
}

func TestCalculateTotal(t *testing.T) {
	total := CalculateTotal(sample())
	assert.Equal(t, "Total", total.Key)
	assert.Equal(t, 4, total.RecordCount)
	assert.Equal(t, 1, total.Unknown)
	assert.Equal(t, int64(930), total.Units)
	assert.Equal(t, "7200.00", total.Amount.StringFixed(2))
	assert.Equal(t, "1800.00", total.Average().StringFixed(2))
}
