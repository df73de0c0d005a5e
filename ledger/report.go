/*
report.go - Read-only analytics over the ledger

PURPOSE:
  Pure read-side computation over a date range: income/expense totals,
  per-category expense breakdown with percentage-of-total, and a monthly
  income/expense/net series capped at the 12 most recent buckets.

FILTERS (applied uniformly):
  - settled entries only (Paid == true)
  - IncludeInReports == true
  - income/expense types only; transfer legs are excluded so money moved
    between the user's own accounts is never double-counted

NUMERIC NOTE:
  Amounts stay int64 cents throughout. decimal.Decimal is used only where
  division happens (category percentages) so no float reaches the output.

FAILURE MODES:
  Only input validation: a malformed range (end before start) errors.
  Zero-row ranges produce empty slices and zero totals, not errors.

SEE ALSO:
  - types.go: Entry
  - finance/service.go: Loads the range and delegates here
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT SHAPES
// =============================================================================

// Report is the analytics result for one user and date range.
type Report struct {
	From   Date
	To     Date
	Totals ReportTotals

	// Categories is the expense breakdown, largest first.
	Categories []CategorySummary

	// Monthly is the time series, chronologically ascending, at most the 12
	// most recent buckets within range.
	Monthly []MonthlyBucket
}

type ReportTotals struct {
	Income   int64 // cents, sum of settled income
	Expenses int64 // cents, absolute sum of settled expenses
	Net      int64 // Income - Expenses
}

type CategorySummary struct {
	Category CategoryID
	Total    int64           // cents, absolute
	Percent  decimal.Decimal // share of total expenses, 2 decimal places
}

type MonthlyBucket struct {
	Month    string // "YYYY-MM"
	Income   int64
	Expenses int64
	Net      int64
}

// MaxMonthlyBuckets caps the time series length.
const MaxMonthlyBuckets = 12

// =============================================================================
// BUILD REPORT
// =============================================================================

// BuildReport aggregates the given entries over [from, to] inclusive.
// Entries outside the range or failing the report filters are ignored, so
// callers may pass a superset.
func BuildReport(entries []Entry, from, to Date) (Report, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return Report{}, ErrInvalidDate
	}

	report := Report{From: from, To: to}
	byCategory := make(map[CategoryID]int64)
	byMonth := make(map[string]*MonthlyBucket)

	for _, e := range entries {
		if !reportable(e, from, to) {
			continue
		}

		bucket := byMonth[e.Date.MonthKey()]
		if bucket == nil {
			bucket = &MonthlyBucket{Month: e.Date.MonthKey()}
			byMonth[e.Date.MonthKey()] = bucket
		}

		switch e.Type {
		case EntryIncome:
			report.Totals.Income += e.Amount
			bucket.Income += e.Amount
		case EntryExpense:
			spent := -e.Amount // expenses are stored negative
			report.Totals.Expenses += spent
			bucket.Expenses += spent
			byCategory[e.Category] += spent
		}
	}
	report.Totals.Net = report.Totals.Income - report.Totals.Expenses

	report.Categories = categorySummaries(byCategory, report.Totals.Expenses)
	report.Monthly = monthlySeries(byMonth)
	return report, nil
}

func reportable(e Entry, from, to Date) bool {
	if !e.Paid || !e.IncludeInReports {
		return false
	}
	if e.IsTransferLeg() {
		return false
	}
	return e.Date.AfterOrEqual(from) && e.Date.BeforeOrEqual(to)
}

func categorySummaries(byCategory map[CategoryID]int64, totalExpenses int64) []CategorySummary {
	if len(byCategory) == 0 {
		return []CategorySummary{}
	}

	// Guard the division: with zero total expenses every share is zero.
	divisor := totalExpenses
	if divisor == 0 {
		divisor = 1
	}
	total := decimal.NewFromInt(divisor)
	hundred := decimal.NewFromInt(100)

	summaries := make([]CategorySummary, 0, len(byCategory))
	for cat, spent := range byCategory {
		percent := decimal.NewFromInt(spent).Mul(hundred).Div(total).Round(2)
		summaries = append(summaries, CategorySummary{Category: cat, Total: spent, Percent: percent})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Total != summaries[j].Total {
			return summaries[i].Total > summaries[j].Total
		}
		return summaries[i].Category < summaries[j].Category
	})
	return summaries
}

func monthlySeries(byMonth map[string]*MonthlyBucket) []MonthlyBucket {
	if len(byMonth) == 0 {
		return []MonthlyBucket{}
	}

	series := make([]MonthlyBucket, 0, len(byMonth))
	for _, b := range byMonth {
		b.Net = b.Income - b.Expenses
		series = append(series, *b)
	}
	// "YYYY-MM" sorts chronologically.
	sort.Slice(series, func(i, j int) bool { return series[i].Month < series[j].Month })

	// Keep the most recent buckets, still ascending.
	if len(series) > MaxMonthlyBuckets {
		series = series[len(series)-MaxMonthlyBuckets:]
	}
	return series
}
