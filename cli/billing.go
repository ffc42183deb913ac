package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhaobenny/voltbill/cli/internal/aggregator"
	"github.com/zhaobenny/voltbill/cli/internal/output"
	"github.com/zhaobenny/voltbill/internal/bills"
	"github.com/zhaobenny/voltbill/internal/model"
	"github.com/zhaobenny/voltbill/internal/pricing"
)

const firstBillingYear = 2000

// period is a validated billing period
type period struct {
	year  int
	month int // zero-based
}

func (p period) key() string {
	return model.PeriodKey(p.year, p.month)
}

// parsePeriod validates --year and --month. The year must fall between 2000
// and the current year.
func parsePeriod(year int, month string, now time.Time) (period, error) {
	if year < firstBillingYear || year > now.Year() {
		return period{}, fmt.Errorf("year must be between %d and %d", firstBillingYear, now.Year())
	}
	m, ok := output.ParseMonth(month)
	if !ok {
		return period{}, fmt.Errorf("invalid month %q", month)
	}
	return period{year: year, month: m}, nil
}

// validateMeter rejects meters the billing log or a receipt file name
// cannot hold
func validateMeter(meter string) error {
	if meter == "" {
		return errors.New("meter number is required")
	}
	if !bills.ValidMeter(meter) {
		return fmt.Errorf("meter %q may not contain ',', '|', ':', '/', '\\' or line breaks", meter)
	}
	return nil
}

func runCalc(args []string) {
	fs := flag.NewFlagSet("calc", flag.ExitOnError)
	var units int64
	fs.Int64Var(&units, "units", -1, "Units consumed (kWh)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: voltbill calc --units <kWh>

Prints the bill breakdown without recording anything.

Options:
`)
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if units < 0 {
		fs.Usage()
		os.Exit(1)
	}

	now := time.Now()
	schedule := pricing.DefaultSchedule()
	output.WriteReceipt(os.Stdout, output.Receipt{
		Year:      now.Year(),
		Month:     int(now.Month()) - 1,
		Breakdown: schedule.Calculate(units),
		Schedule:  schedule,
	})
}

// checkBillable applies the rules the caller owns before committing a bill:
// a period with a detailed record cannot be billed again and a meter that
// belongs to someone else cannot be reused
func checkBillable(store *bills.Store, username string, p period, meter string) error {
	if store.HasRecord(username, p.year, p.month) {
		for _, r := range store.ListRecords(username) {
			if r.PeriodKey == p.key() && r.HasDetail() {
				return fmt.Errorf("the bill for %s %d has already been calculated", output.MonthName(p.month), p.year)
			}
		}
	}
	if owner, ok := store.OwnerOfMeter(meter); ok && owner != username {
		return fmt.Errorf("meter %s is already registered to user %s", meter, owner)
	}
	return nil
}

func runBill(args []string) {
	fs := flag.NewFlagSet("bill", flag.ExitOnError)
	var (
		year  int
		month string
		units int64
		meter string
		save  string
	)
	fs.IntVar(&year, "year", time.Now().Year(), "Billing year")
	fs.StringVar(&month, "month", "", "Billing month (1-12 or name)")
	fs.Int64Var(&units, "units", -1, "Units consumed (kWh)")
	fs.StringVar(&meter, "meter", "", "Meter number")
	fs.StringVar(&save, "save", "", "Also write the receipt to this file or directory")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: voltbill bill --month <month> --units <kWh> --meter <id> [options]

Calculates the bill for a period and records it. Each period can be billed
once, and a meter can only belong to one account.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  voltbill bill --year 2025 --month 3 --units 420 --meter MTR-1001
  voltbill bill --month march --units 80 --meter MTR-1001 --save ./receipts
`)
	}
	fs.Parse(args)

	p, err := parsePeriod(year, month, time.Now())
	if err != nil {
		fail("%v", err)
	}
	if units < 0 {
		fail("units must be a non-negative number")
	}
	meter = strings.TrimSpace(meter)
	if err := validateMeter(meter); err != nil {
		fail("%v", err)
	}

	a := newApp()
	username := a.currentUser()

	store, closeStore := a.openBills()
	defer closeStore()

	if err := checkBillable(store, username, p, meter); err != nil {
		closeStore()
		fail("%v", err)
	}

	schedule := pricing.DefaultSchedule()
	breakdown := schedule.Calculate(units)

	result, err := store.AddRecord(username, p.year, p.month, units, breakdown.TotalDue, meter)
	switch {
	case errors.Is(err, bills.ErrSave):
		a.log.WithError(err).Warn("bill recorded but not yet saved")
	case err != nil:
		closeStore()
		fail("%v", err)
	}

	if !result.Written() {
		owner, _ := store.OwnerOfMeter(meter)
		closeStore()
		if result == bills.MeterInUse {
			fail("meter %s is already registered to user %s", meter, owner)
		}
		fail("the bill for %s %d has already been calculated", output.MonthName(p.month), p.year)
	}

	receipt := output.Receipt{
		Username:  username,
		Year:      p.year,
		Month:     p.month,
		Meter:     meter,
		Breakdown: breakdown,
		Schedule:  schedule,
	}
	output.WriteReceipt(os.Stdout, receipt)
	fmt.Printf("\nMarked period %s as calculated.\n", p.key())
	if result == bills.Upgraded {
		fmt.Println("The earlier record for this period had no detail and was replaced.")
	}

	if save != "" {
		path := save
		if info, err := os.Stat(save); err == nil && info.IsDir() {
			path = filepath.Join(save, output.ReceiptFileName(meter, p.year, p.month))
		}
		if err := writeFile(path, func(w io.Writer) error { return output.WriteReceipt(w, receipt) }); err != nil {
			closeStore()
			fail("saving receipt: %v", err)
		}
		fmt.Printf("Receipt saved to %s\n", path)
	}
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	var (
		year    string
		jsonOut bool
		byYear  bool
		compact bool
	)
	fs.StringVar(&year, "year", "", "Only show this year (YYYY)")
	fs.BoolVar(&jsonOut, "json", false, "Output as JSON")
	fs.BoolVar(&byYear, "by-year", false, "Show yearly totals instead of individual bills")
	fs.BoolVar(&compact, "compact", false, "Force compact table output")
	fs.BoolVar(&compact, "c", false, "Force compact table output")
	fs.Parse(args)

	a := newApp()
	username := a.currentUser()

	store, closeStore := a.openBills()
	defer closeStore()

	all := store.ListRecords(username)
	records := aggregator.NewestFirst(aggregator.FilterRecords(all, aggregator.Options{Year: year}))
	total := aggregator.CalculateTotal(records)

	switch {
	case jsonOut:
		if err := output.PrintJSON(os.Stdout, username, records, total); err != nil {
			fail("%v", err)
		}
	case byYear:
		output.PrintYearTable(os.Stdout, aggregator.ByYear(records), total)
	default:
		output.PrintHistory(os.Stdout, records, output.TableOptions{ForceCompact: compact})
		if year == "" {
			if years := aggregator.Years(all); len(years) > 1 {
				fmt.Printf("\nYears on record: %s\n", strings.Join(years, ", "))
			}
		}
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var (
		year    string
		periods string
		out     string
	)
	fs.StringVar(&year, "year", "", "Only export this year (YYYY)")
	fs.StringVar(&periods, "period", "", "Comma-separated periods to export (YYYY-MM,...)")
	fs.StringVar(&out, "out", "", "Output file, - for stdout (default <user>_bills_export_<date>.txt)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: voltbill export [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  voltbill export --year 2025
  voltbill export --period 2025-01,2025-02 --out -
`)
	}
	fs.Parse(args)

	opts := aggregator.Options{Year: year}
	if periods != "" {
		for _, p := range strings.Split(periods, ",") {
			if p = strings.TrimSpace(p); p != "" {
				opts.Periods = append(opts.Periods, p)
			}
		}
	}

	a := newApp()
	username := a.currentUser()

	store, closeStore := a.openBills()
	defer closeStore()

	records := aggregator.NewestFirst(aggregator.FilterRecords(store.ListRecords(username), opts))
	if len(records) == 0 {
		fmt.Println("No billing history found for the selection.")
		return
	}
	total := aggregator.CalculateTotal(records)
	now := time.Now()

	render := func(w io.Writer) error {
		return output.WriteExport(w, username, now, records, total)
	}
	if out == "-" {
		if err := render(os.Stdout); err != nil {
			fail("%v", err)
		}
		return
	}
	if out == "" {
		out = output.ExportFileName(username, now)
	}
	if err := writeFile(out, render); err != nil {
		fail("exporting: %v", err)
	}
	fmt.Printf("Exported %d record(s) to %s\n", len(records), out)
}

func runMeter(args []string) {
	fs := flag.NewFlagSet("meter", flag.ExitOnError)
	var id, periodKey string
	fs.StringVar(&id, "id", "", "Meter number")
	fs.StringVar(&periodKey, "period", "", "Also show the bill for this period (YYYY-MM)")
	fs.Parse(args)

	id = strings.TrimSpace(id)
	if id == "" {
		fs.Usage()
		os.Exit(1)
	}

	a := newApp()
	a.currentUser()

	store, closeStore := a.openBills()
	defer closeStore()

	owner, ok := store.OwnerOfMeter(id)
	if !ok {
		fmt.Printf("Meter %s is not registered.\n", id)
		return
	}
	fmt.Printf("Meter %s is registered to %s.\n", id, owner)

	if periodKey == "" {
		return
	}
	r, ok := store.RecordByMeterAndPeriod(id, periodKey)
	if !ok {
		fmt.Printf("No bill for %s.\n", periodKey)
		return
	}
	output.PrintHistory(os.Stdout, []model.BillRecord{r}, output.TableOptions{})
}
