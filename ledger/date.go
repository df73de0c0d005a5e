package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar date stored as YYYY-MM-DD text
// =============================================================================

// Date is a calendar date in fixed "YYYY-MM-DD" form. The representation is
// load-bearing: ordering is plain lexicographic string comparison, which is
// exactly how the store compares date columns. There is no timezone; a Date
// is a calendar day, not a timestamp.
type Date string

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(dateLayout))
}

// ParseDate validates and normalizes a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q (want YYYY-MM-DD)", ErrInvalidDate, s)
	}
	return Date(t.Format(dateLayout)), nil
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// Comparison: lexicographic comparison of the fixed-width form IS
// chronological comparison.
func (d Date) Before(other Date) bool        { return d < other }
func (d Date) After(other Date) bool         { return d > other }
func (d Date) BeforeOrEqual(other Date) bool { return d <= other }
func (d Date) AfterOrEqual(other Date) bool  { return d >= other }
func (d Date) IsZero() bool                  { return d == "" }

func (d Date) Time() time.Time {
	t, _ := time.Parse(dateLayout, string(d))
	return t
}

func (d Date) Year() int         { return d.Time().Year() }
func (d Date) Month() time.Month { return d.Time().Month() }
func (d Date) Day() int          { return d.Time().Day() }

// MonthKey returns the "YYYY-MM" bucket key for monthly report series.
func (d Date) MonthKey() string { return string(d)[:7] }

func (d Date) AddDays(n int) Date {
	t := d.Time().AddDate(0, 0, n)
	return Date(t.Format(dateLayout))
}

func (d Date) String() string { return string(d) }

// =============================================================================
// DAY-OF-MONTH HELPERS - Billing cycle day-roll rules
// =============================================================================

// DayOfMonth returns the occurrence of the given day in year/month, clamped to
// the month's length (day 31 in February yields Feb 28 or 29).
func DayOfMonth(year int, month time.Month, day int) Date {
	last := daysInMonth(year, month)
	if day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// NextMonth returns the (year, month) pair following the given one.
func NextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
