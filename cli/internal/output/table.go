package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zhaobenny/voltbill/internal/model"
)

const (
	compactThreshold = 60 // Terminal width below which the meter column is dropped
	defaultWidth     = 120
	unknown          = "-"
)

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// TableOptions controls table display behavior
type TableOptions struct {
	ForceCompact bool
}

// getTerminalWidth returns the current terminal width, honouring COLUMNS
func getTerminalWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if width, err := strconv.Atoi(cols); err == nil && width > 0 {
			return width
		}
	}
	if width, ok := terminalWidth(); ok {
		return width
	}
	return defaultWidth
}

func shouldUseCompact(opts TableOptions) bool {
	if opts.ForceCompact {
		return true
	}
	return getTerminalWidth() < compactThreshold
}

// FormatNumber formats a number with thousand separators
func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	negative := n < 0
	if negative {
		str = str[1:]
	}

	var b strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// FormatAmount formats a monetary amount with two decimals
func FormatAmount(amount float64) string {
	return FormatDecimal(decimal.NewFromFloat(amount))
}

// FormatDecimal formats a decimal amount with two decimals
func FormatDecimal(d decimal.Decimal) string {
	return "Rs. " + d.StringFixed(2)
}

// MonthName returns the English name of a zero-based month
func MonthName(month int) string {
	if month < 0 || month >= len(monthNames) {
		return ""
	}
	return monthNames[month]
}

// ParseMonth accepts 1-12 or an English month name or prefix ("mar") and
// returns the zero-based month
func ParseMonth(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, false
		}
		return n - 1, true
	}
	if len(s) < 3 {
		return 0, false
	}
	for i, name := range monthNames {
		if strings.HasPrefix(strings.ToLower(name), strings.ToLower(s)) {
			return i, true
		}
	}
	return 0, false
}

// periodParts splits a YYYY-MM key into month name and year
func periodParts(key string) (month, year string) {
	y, m, ok := strings.Cut(key, "-")
	if !ok {
		return key, ""
	}
	idx, err := strconv.Atoi(m)
	if err != nil {
		return m, y
	}
	if idx < 1 {
		idx = 1
	} else if idx > 12 {
		idx = 12
	}
	return monthNames[idx-1], y
}

func unitsCell(r model.BillRecord) string {
	if r.Units == nil {
		return unknown
	}
	return FormatNumber(*r.Units)
}

func amountCell(r model.BillRecord) string {
	if r.Amount == nil {
		return unknown
	}
	return decimal.NewFromFloat(*r.Amount).StringFixed(2)
}

// PrintHistory writes the records as a table in the order given
func PrintHistory(w io.Writer, records []model.BillRecord, opts TableOptions) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No billing history found.")
		return
	}

	compact := shouldUseCompact(opts)

	if compact {
		fmt.Fprintf(w, "%-10s  %4s  %10s  %12s\n", "Month", "Year", "Units", "Amount")
		fmt.Fprintln(w, strings.Repeat("─", 10+2+4+2+10+2+12))
		for _, r := range records {
			month, year := periodParts(r.PeriodKey)
			fmt.Fprintf(w, "%-10s  %4s  %10s  %12s\n", month, year, unitsCell(r), amountCell(r))
		}
		return
	}

	meterWidth := len("Meter")
	for _, r := range records {
		if len(r.Meter) > meterWidth {
			meterWidth = len(r.Meter)
		}
	}

	fmt.Fprintf(w, "%-10s  %4s  %10s  %12s  %-*s\n", "Month", "Year", "Units", "Amount", meterWidth, "Meter")
	fmt.Fprintln(w, strings.Repeat("─", 10+2+4+2+10+2+12+2+meterWidth))
	for _, r := range records {
		month, year := periodParts(r.PeriodKey)
		meter := r.Meter
		if meter == "" {
			meter = unknown
		}
		fmt.Fprintf(w, "%-10s  %4s  %10s  %12s  %-*s\n", month, year, unitsCell(r), amountCell(r), meterWidth, meter)
	}
}

// PrintYearTable writes yearly summaries followed by a total row
func PrintYearTable(w io.Writer, results []model.Summary, total model.Summary) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No billing history found.")
		return
	}

	fmt.Fprintf(w, "%-6s  %8s  %12s  %16s\n", "Year", "Bills", "Units", "Amount")
	fmt.Fprintln(w, strings.Repeat("─", 6+2+8+2+12+2+16))
	for _, r := range results {
		fmt.Fprintf(w, "%-6s  %8d  %12s  %16s\n", r.Key, r.RecordCount, FormatNumber(r.Units), r.Amount.StringFixed(2))
	}
	if len(results) > 1 {
		fmt.Fprintln(w, strings.Repeat("─", 6+2+8+2+12+2+16))
		fmt.Fprintf(w, "%-6s  %8d  %12s  %16s\n", total.Key, total.RecordCount, FormatNumber(total.Units), total.Amount.StringFixed(2))
	}
}

// JSONOutput represents the JSON output structure
type JSONOutput struct {
	Username string       `json:"username"`
	Records  []JSONRecord `json:"records"`
	Total    JSONTotal    `json:"total"`
}

// JSONRecord is one bill; unknown units or amount are null
type JSONRecord struct {
	Period string   `json:"period"`
	Units  *int64   `json:"units"`
	Amount *float64 `json:"amount"`
	Meter  string   `json:"meter,omitempty"`
}

// JSONTotal summarizes every record in the output
type JSONTotal struct {
	Records int             `json:"records"`
	Units   int64           `json:"units"`
	Amount  decimal.Decimal `json:"amount"`
}

// PrintJSON writes the records and their total as indented JSON
func PrintJSON(w io.Writer, username string, records []model.BillRecord, total model.Summary) error {
	out := JSONOutput{
		Username: username,
		Records:  make([]JSONRecord, len(records)),
		Total: JSONTotal{
			Records: total.RecordCount,
			Units:   total.Units,
			Amount:  total.Amount,
		},
	}
	for i, r := range records {
		out.Records[i] = JSONRecord{
			Period: r.PeriodKey,
			Units:  r.Units,
			Amount: r.Amount,
			Meter:  r.Meter,
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
