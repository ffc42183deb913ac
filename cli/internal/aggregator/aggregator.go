package aggregator

import (
	"sort"

	"github.com/zhaobenny/voltbill/internal/model"
)

// Options for filtering history
type Options struct {
	Year    string   // YYYY, empty for every year
	Periods []string // Restrict to these period keys, empty for all
}

// FilterRecords filters records by year and period selection
func FilterRecords(records []model.BillRecord, opts Options) []model.BillRecord {
	var selected map[string]bool
	if len(opts.Periods) > 0 {
		selected = make(map[string]bool, len(opts.Periods))
		for _, p := range opts.Periods {
			selected[p] = true
		}
	}

	var filtered []model.BillRecord
	for _, r := range records {
		if opts.Year != "" && r.Year() != opts.Year {
			continue
		}
		if selected != nil && !selected[r.PeriodKey] {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// NewestFirst returns a copy of records sorted by period, newest first
func NewestFirst(records []model.BillRecord) []model.BillRecord {
	out := make([]model.BillRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodKey > out[j].PeriodKey
	})
	return out
}

// Years returns the distinct years present in records, newest first
func Years(records []model.BillRecord) []string {
	seen := make(map[string]bool)
	var years []string
	for _, r := range records {
		y := r.Year()
		if y == "" || seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years
}

// ByYear aggregates records by year, newest first
func ByYear(records []model.BillRecord) []model.Summary {
	grouped := make(map[string]*model.Summary)
	for _, r := range records {
		key := r.Year()
		if _, ok := grouped[key]; !ok {
			grouped[key] = &model.Summary{Key: key}
		}
		grouped[key].Add(r)
	}

	results := make([]model.Summary, 0, len(grouped))
	for _, s := range grouped {
		results = append(results, *s)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Key > results[j].Key
	})
	return results
}

// CalculateTotal returns the summary over every record
func CalculateTotal(records []model.BillRecord) model.Summary {
	total := model.Summary{Key: "Total"}
	for _, r := range records {
		total.Add(r)
	}
	return total
}
