package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zhaobenny/voltbill/internal/model"
	"github.com/zhaobenny/voltbill/internal/pricing"
)

const ruleWidth = 40

// Receipt is everything printed on a bill
type Receipt struct {
	Username  string
	Year      int
	Month     int // zero-based
	Meter     string
	Breakdown model.Breakdown
	Schedule  pricing.RateSchedule
}

func rule(ch string) string {
	return strings.Repeat(ch, ruleWidth)
}

func centered(s string) string {
	pad := (ruleWidth - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}

// WriteReceipt renders a bill receipt
func WriteReceipt(w io.Writer, rc Receipt) error {
	var b strings.Builder

	b.WriteString(rule("=") + "\n")
	b.WriteString(centered("ELECTRICITY BILL RECEIPT") + "\n")
	b.WriteString(rule("=") + "\n\n")
	fmt.Fprintf(&b, "%-20s %s %d\n", "Billing Period:", MonthName(rc.Month), rc.Year)
	if rc.Username != "" {
		fmt.Fprintf(&b, "%-20s %s\n", "Customer:", rc.Username)
	}
	if rc.Meter != "" {
		fmt.Fprintf(&b, "%-20s %s\n", "Meter Number:", rc.Meter)
	}
	fmt.Fprintf(&b, "%-20s %s kWh\n", "Units Consumed:", FormatNumber(rc.Breakdown.Units))

	b.WriteString("\n" + rule("-") + "\n")
	b.WriteString(centered("BILL BREAKDOWN") + "\n")
	b.WriteString(rule("-") + "\n")
	fmt.Fprintf(&b, "%-25s %s\n", "Fixed Service Charge:", FormatAmount(rc.Breakdown.ServiceCharge))
	for i := range rc.Breakdown.SlabCosts {
		label := fmt.Sprintf("Slab %d Cost (%s):", i+1, rc.Schedule.SlabLabel(i))
		fmt.Fprintf(&b, "%-25s %s\n", label, FormatAmount(rc.Breakdown.Slab(i)))
	}
	b.WriteString(rule("=") + "\n")
	fmt.Fprintf(&b, "%-25s %s\n", "TOTAL AMOUNT DUE:", FormatAmount(rc.Breakdown.TotalDue))
	b.WriteString(rule("=") + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// ReceiptFileName suggests a file name for a saved receipt
func ReceiptFileName(meter string, year, month int) string {
	name := fmt.Sprintf("%s_%d_bill.txt", MonthName(month), year)
	if meter != "" {
		name = meter + "_" + name
	}
	return name
}

// WriteExport renders the export summary of records for username
func WriteExport(w io.Writer, username string, date time.Time, records []model.BillRecord, total model.Summary) error {
	var b strings.Builder

	b.WriteString(rule("=") + "\n")
	b.WriteString(centered("ELECTRICITY BILL EXPORT SUMMARY") + "\n")
	b.WriteString(rule("=") + "\n\n")
	fmt.Fprintf(&b, "User: %s\n", username)
	fmt.Fprintf(&b, "Export Date: %s\n", date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Total Records: %d\n\n", len(records))

	for i, r := range records {
		month, year := periodParts(r.PeriodKey)
		b.WriteString(rule("-") + "\n")
		fmt.Fprintf(&b, "RECORD %d of %d\n", i+1, len(records))
		b.WriteString(rule("-") + "\n")
		fmt.Fprintf(&b, "Period: %s %s\n", month, year)
		fmt.Fprintf(&b, "Units Consumed: %s kWh\n", unitsCell(r))
		fmt.Fprintf(&b, "Bill Amount: Rs. %s\n", amountCell(r))
		if r.Meter != "" {
			fmt.Fprintf(&b, "Meter: %s\n", r.Meter)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule("=") + "\n")
	b.WriteString(centered("EXPORT SUMMARY") + "\n")
	b.WriteString(rule("=") + "\n")
	fmt.Fprintf(&b, "Total Records Exported: %d\n", total.RecordCount)
	fmt.Fprintf(&b, "Total Units Consumed: %s kWh\n", FormatNumber(total.Units))
	fmt.Fprintf(&b, "Total Amount: %s\n", FormatDecimal(total.Amount))
	fmt.Fprintf(&b, "Average per Record: %s\n", FormatDecimal(total.Average()))
	if total.Unknown > 0 {
		fmt.Fprintf(&b, "Records Without Detail: %d\n", total.Unknown)
	}
	b.WriteString(rule("=") + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// ExportFileName suggests a file name for an export
func ExportFileName(username string, date time.Time) string {
	return fmt.Sprintf("%s_bills_export_%s.txt", username, date.Format("2006-01-02"))
}
