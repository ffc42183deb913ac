package model

import "github.com/shopspring/decimal"

// Summary is a set of bill records aggregated under some key (year, "Total")
type Summary struct {
	Key         string          // The grouping key
	Units       int64           // Sum of known units
	Amount      decimal.Decimal // Sum of known amounts
	RecordCount int             // Number of records aggregated
	Unknown     int             // Records without units or amount
}

// Average returns the amount per record, counting records of unknown detail
func (s Summary) Average() decimal.Decimal {
	if s.RecordCount == 0 {
		return decimal.Zero
	}
	return s.Amount.Div(decimal.NewFromInt(int64(s.RecordCount)))
}

// Add folds r into the summary
func (s *Summary) Add(r BillRecord) {
	s.RecordCount++
	if !r.HasDetail() {
		s.Unknown++
	}
	if r.Units != nil {
		s.Units += *r.Units
	}
	if r.Amount != nil {
		s.Amount = s.Amount.Add(decimal.NewFromFloat(*r.Amount))
	}
}
