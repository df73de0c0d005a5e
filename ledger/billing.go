/*
billing.go - Credit-card billing cycle planning

PURPOSE:
  Computes, as a pure function, what the periodic billing maintenance pass
  should do for one credit account: which open cycles to close and which
  cycle to open next. Keeping this pure means it can be unit-tested without
  a real clock or scheduler, and the maintenance pass stays trivially
  idempotent.

DAY-ROLL RULES:
  - Next closing date is the occurrence of CloseDay in the current month;
    if that occurrence is today or already past, it rolls to next month.
  - Start date is one day after the previous period's closing date.
  - Due date is the occurrence of DueDay in the closing month; when
    DueDay <= CloseDay the due date rolls to the following month (the due
    day is numerically earlier in the calendar but chronologically after
    closing).
  - Day-of-month occurrences clamp to the month's length (day 31 in
    February yields the last day of February).

IDEMPOTENCE:
  The close step is set-based: every open cycle with closing date <= today
  closes, so a scheduler that was down for months catches up in one pass.
  The open step is an insert-if-absent keyed on (account, closing date);
  re-running it is a no-op.

SEE ALSO:
  - finance/service.go: RunBillingCycleMaintenance applies the plan
  - store.go: CloseCyclesThrough / InsertCycleIfAbsent
*/
package ledger

// =============================================================================
// BILLING PLAN
// =============================================================================

// BillingPlan is the outcome of planning one account's maintenance pass.
type BillingPlan struct {
	// CloseThrough: every open cycle with ClosingDate <= this date must
	// transition to closed. Set-based so missed runs catch up.
	CloseThrough Date

	// Open is the cycle to insert if none exists for its
	// (account, closing date) pair. Status is always CycleOpen.
	Open Cycle
}

// PlanBilling computes the maintenance plan for one credit account as of
// today. openCycles must be the account's cycles currently in status open
// (any order). Returns a typed config error when billing days are malformed;
// the caller skips the account and continues.
func PlanBilling(today Date, acct Account, openCycles []Cycle) (BillingPlan, error) {
	if !acct.Type.IsCredit() {
		return BillingPlan{}, ErrNotCreditAccount
	}
	closeDay, dueDay, err := billingDays(acct)
	if err != nil {
		return BillingPlan{}, err
	}

	// Next closing: occurrence of closeDay this month, rolled forward when
	// today is on or past it (a cycle closing today closes in this pass).
	closing := DayOfMonth(today.Year(), today.Month(), closeDay)
	if closing.BeforeOrEqual(today) {
		y, m := NextMonth(closing.Year(), closing.Month())
		closing = DayOfMonth(y, m, closeDay)
	}

	// Start: one day after the previous period's closing date. The previous
	// closing is the latest known closing before the new one, falling back
	// to the computed previous occurrence when no cycle history exists.
	prevClosing := previousClosing(closing, closeDay, openCycles)
	start := prevClosing.AddDays(1)

	// Due date: dueDay in the closing month, rolled when it would land on
	// or before the closing day.
	dueYear, dueMonth := closing.Year(), closing.Month()
	if dueDay <= closeDay {
		dueYear, dueMonth = NextMonth(dueYear, dueMonth)
	}
	due := DayOfMonth(dueYear, dueMonth, dueDay)

	return BillingPlan{
		CloseThrough: today,
		Open: Cycle{
			UserID:      acct.UserID,
			AccountID:   acct.ID,
			Status:      CycleOpen,
			StartDate:   start,
			ClosingDate: closing,
			DueDate:     due,
		},
	}, nil
}

func billingDays(acct Account) (closeDay, dueDay int, err error) {
	if acct.CloseDay == nil || *acct.CloseDay < 1 || *acct.CloseDay > 31 {
		v := 0
		if acct.CloseDay != nil {
			v = *acct.CloseDay
		}
		return 0, 0, &BillingConfigError{AccountID: acct.ID, Field: "close_day", Value: v}
	}
	if acct.DueDay == nil || *acct.DueDay < 1 || *acct.DueDay > 31 {
		v := 0
		if acct.DueDay != nil {
			v = *acct.DueDay
		}
		return 0, 0, &BillingConfigError{AccountID: acct.ID, Field: "due_day", Value: v}
	}
	return *acct.CloseDay, *acct.DueDay, nil
}

func previousClosing(nextClosing Date, closeDay int, openCycles []Cycle) Date {
	// Prefer the latest recorded closing strictly before the new one, so
	// periods stay contiguous even after downtime.
	var latest Date
	for _, c := range openCycles {
		if c.ClosingDate.Before(nextClosing) && c.ClosingDate.After(latest) {
			latest = c.ClosingDate
		}
	}
	if !latest.IsZero() {
		return latest
	}

	// No history: previous occurrence of closeDay one month back.
	y, m := nextClosing.Year(), nextClosing.Month()
	if m == 1 {
		y, m = y-1, 12
	} else {
		m--
	}
	return DayOfMonth(y, m, closeDay)
}
