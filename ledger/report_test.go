package ledger_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-engine/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func reportEntry(id string, typ ledger.EntryType, amount int64, date ledger.Date, category string) ledger.Entry {
	return ledger.Entry{
		ID:               ledger.EntryID(id),
		UserID:           "user-1",
		AccountID:        "acc-1",
		Amount:           amount,
		Type:             typ,
		Paid:             true,
		Date:             date,
		Category:         ledger.CategoryID(category),
		IncludeInReports: true,
	}
}

// =============================================================================
// FILTERS
// =============================================================================

func TestBuildReport_CountsOnlySettledEntries(t *testing.T) {
	// GIVEN: Settled income of 10000 and an UNSETTLED expense of -3000
	// WHEN: The report is built over the month
	// THEN: Income is 10000, expenses are 0; pending money is invisible

	pending := reportEntry("txn-2", ledger.EntryExpense, -3000, "2025-03-12", "groceries")
	pending.Paid = false

	entries := []ledger.Entry{
		reportEntry("txn-1", ledger.EntryIncome, 10000, "2025-03-01", "salary"),
		pending,
	}

	report, err := ledger.BuildReport(entries, "2025-03-01", "2025-03-31")

	require.NoError(t, err)
	assert.Equal(t, int64(10000), report.Totals.Income)
	assert.Equal(t, int64(0), report.Totals.Expenses)
	assert.Equal(t, int64(10000), report.Totals.Net)
}

func TestBuildReport_ExcludesTransferLegs(t *testing.T) {
	// Money moved between the user's own accounts is not income or spending.
	transfer := reportEntry("txn-2", ledger.EntryTransfer, -5000, "2025-03-10", "")

	entries := []ledger.Entry{
		reportEntry("txn-1", ledger.EntryIncome, 10000, "2025-03-01", "salary"),
		transfer,
	}

	report, err := ledger.BuildReport(entries, "2025-03-01", "2025-03-31")

	require.NoError(t, err)
	assert.Equal(t, int64(10000), report.Totals.Income)
	assert.Equal(t, int64(0), report.Totals.Expenses)
}

func TestBuildReport_ExcludesOptedOutEntries(t *testing.T) {
	hidden := reportEntry("txn-2", ledger.EntryExpense, -3000, "2025-03-12", "groceries")
	hidden.IncludeInReports = false

	report, err := ledger.BuildReport([]ledger.Entry{hidden}, "2025-03-01", "2025-03-31")

	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Totals.Expenses)
	assert.Empty(t, report.Categories)
}

func TestBuildReport_ExcludesOutOfRangeEntries(t *testing.T) {
	entries := []ledger.Entry{
		reportEntry("txn-1", ledger.EntryExpense, -1000, "2025-02-28", "groceries"),
		reportEntry("txn-2", ledger.EntryExpense, -2000, "2025-03-15", "groceries"),
		reportEntry("txn-3", ledger.EntryExpense, -4000, "2025-04-01", "groceries"),
	}

	report, err := ledger.BuildReport(entries, "2025-03-01", "2025-03-31")

	require.NoError(t, err)
	assert.Equal(t, int64(2000), report.Totals.Expenses)
}

// =============================================================================
// CATEGORY BREAKDOWN
// =============================================================================

func TestBuildReport_CategoryBreakdown_SortedWithPercentages(t *testing.T) {
	// GIVEN: 6000 on groceries, 3000 on transport, 1000 on fun
	// WHEN: The report is built
	// THEN: Categories are largest-first with exact percentage shares

	entries := []ledger.Entry{
		reportEntry("txn-1", ledger.EntryExpense, -6000, "2025-03-05", "groceries"),
		reportEntry("txn-2", ledger.EntryExpense, -3000, "2025-03-10", "transport"),
		reportEntry("txn-3", ledger.EntryExpense, -1000, "2025-03-15", "fun"),
	}

	report, err := ledger.BuildReport(entries, "2025-03-01", "2025-03-31")

	require.NoError(t, err)
	require.Len(t, report.Categories, 3)
	assert.Equal(t, ledger.CategoryID("groceries"), report.Categories[0].Category)
	assert.Equal(t, int64(6000), report.Categories[0].Total)
	assert.Equal(t, "60", report.Categories[0].Percent.String())
	assert.Equal(t, "30", report.Categories[1].Percent.String())
	assert.Equal(t, "10", report.Categories[2].Percent.String())
}

func TestBuildReport_ZeroExpenses_NoDivisionBlowup(t *testing.T) {
	// Income-only ranges must not divide by zero anywhere.
	entries := []ledger.Entry{
		reportEntry("txn-1", ledger.EntryIncome, 10000, "2025-03-01", "salary"),
	}

	report, err := ledger.BuildReport(entries, "2025-03-01", "2025-03-31")

	require.NoError(t, err)
	assert.Empty(t, report.Categories)
	assert.Equal(t, int64(10000), report.Totals.Net)
}

// =============================================================================
// MONTHLY SERIES
// =============================================================================

func TestBuildReport_MonthlySeries_AscendingWithNet(t *testing.T) {
	entries := []ledger.Entry{
		reportEntry("txn-1", ledger.EntryIncome, 10000, "2025-01-05", "salary"),
		reportEntry("txn-2", ledger.EntryExpense, -4000, "2025-01-20", "groceries"),
		reportEntry("txn-3", ledger.EntryIncome, 12000, "2025-02-05", "salary"),
	}

	report, err := ledger.BuildReport(entries, "2025-01-01", "2025-02-28")

	require.NoError(t, err)
	require.Len(t, report.Monthly, 2)
	assert.Equal(t, "2025-01", report.Monthly[0].Month)
	assert.Equal(t, int64(6000), report.Monthly[0].Net)
	assert.Equal(t, "2025-02", report.Monthly[1].Month)
	assert.Equal(t, int64(12000), report.Monthly[1].Net)
}

func TestBuildReport_MonthlySeries_KeepsTwelveMostRecent(t *testing.T) {
	// GIVEN: 15 months of data
	// WHEN: The report spans all of it
	// THEN: Only the 12 most recent months survive, still ascending

	var entries []ledger.Entry
	for i := 0; i < 15; i++ {
		y, m := 2024, i+1
		if m > 12 {
			y, m = 2025, m-12
		}
		date := ledger.Date(fmt.Sprintf("%04d-%02d-15", y, m))
		entries = append(entries, reportEntry(fmt.Sprintf("txn-%d", i), ledger.EntryIncome, 1000, date, "salary"))
	}

	report, err := ledger.BuildReport(entries, "2024-01-01", "2025-03-31")

	require.NoError(t, err)
	require.Len(t, report.Monthly, ledger.MaxMonthlyBuckets)
	assert.Equal(t, "2024-04", report.Monthly[0].Month)
	assert.Equal(t, "2025-03", report.Monthly[11].Month)
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestBuildReport_InvalidRange_Rejected(t *testing.T) {
	_, err := ledger.BuildReport(nil, "2025-03-31", "2025-03-01")
	assert.ErrorIs(t, err, ledger.ErrInvalidDate)

	_, err = ledger.BuildReport(nil, "", "2025-03-01")
	assert.ErrorIs(t, err, ledger.ErrInvalidDate)
}

func TestBuildReport_EmptyRange_ZeroTotalsEmptySlices(t *testing.T) {
	report, err := ledger.BuildReport(nil, "2025-03-01", "2025-03-31")

	require.NoError(t, err)
	assert.Zero(t, report.Totals.Income)
	assert.Zero(t, report.Totals.Expenses)
	assert.NotNil(t, report.Categories)
	assert.NotNil(t, report.Monthly)
	assert.Empty(t, report.Categories)
	assert.Empty(t, report.Monthly)
}
