/*
billing.go - Billing cycle maintenance and bill payment

PURPOSE:
  The write-side of credit-card billing. RunBillingCycleMaintenance is the
  periodic pass the scheduler invokes; PayBill is the composite payment
  operation that moves money and settles a closed cycle.

RESILIENCE:
  The pass is idempotent and resumable: each account's close + open steps
  are independently idempotent, so a crash partway through the account
  list is repaired by the next run. A malformed billing configuration
  skips that account with a log line and never halts the pass.

SEE ALSO:
  - ledger/billing.go: The pure planning function
  - api/scheduler.go: The periodic trigger
*/
package finance

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/warp/finance-engine/ledger"
)

// MaintenanceSummary reports what one billing pass did.
type MaintenanceSummary struct {
	AccountsSeen  int
	CyclesClosed  int
	CyclesOpened  int
	SkippedConfig int
}

// RunBillingCycleMaintenance closes every due cycle and opens the next one
// for each credit account. Safe to re-run at any time; the second of two
// back-to-back runs is a no-op.
func (s *Service) RunBillingCycleMaintenance(ctx context.Context) (MaintenanceSummary, error) {
	today := s.TodayFunc()

	accounts, err := s.Store.CreditAccounts(ctx)
	if err != nil {
		return MaintenanceSummary{}, fmt.Errorf("failed to list credit accounts: %w", err)
	}

	var summary MaintenanceSummary
	for _, acct := range accounts {
		summary.AccountsSeen++

		closed, opened, err := s.maintainAccount(ctx, today, acct)
		if err != nil {
			if errors.Is(err, ledger.ErrInvalidBillingDay) {
				// Bad configuration on one account must not halt the pass.
				log.Printf("[Billing] Skipping account %s: %v", acct.ID, err)
				summary.SkippedConfig++
				continue
			}
			return summary, fmt.Errorf("billing maintenance for %s: %w", acct.ID, err)
		}
		summary.CyclesClosed += closed
		if opened {
			summary.CyclesOpened++
		}
	}

	if summary.CyclesClosed > 0 || summary.CyclesOpened > 0 || summary.SkippedConfig > 0 {
		log.Printf("[Billing] Pass complete: %d closed, %d opened, %d skipped (bad config)",
			summary.CyclesClosed, summary.CyclesOpened, summary.SkippedConfig)
	}
	return summary, nil
}

func (s *Service) maintainAccount(ctx context.Context, today ledger.Date, acct ledger.Account) (closed int, opened bool, err error) {
	err = s.Store.WithTx(ctx, func(store ledger.Store) error {
		open, err := store.OpenCycles(ctx, acct.ID)
		if err != nil {
			return err
		}

		plan, err := ledger.PlanBilling(today, acct, open)
		if err != nil {
			return err
		}

		// Close step: set-based, catches all missed closings after downtime.
		closed, err = store.CloseCyclesThrough(ctx, acct.ID, plan.CloseThrough)
		if err != nil {
			return err
		}

		// Open step: insert-if-absent keyed on (account, closing date).
		next := plan.Open
		next.ID = ledger.CycleID(newID("bill"))
		opened, err = store.InsertCycleIfAbsent(ctx, next)
		return err
	})
	return closed, opened, err
}

// =============================================================================
// BILL PAYMENT - Composite ledger write + cycle bookkeeping
// =============================================================================

// PayBill pays amountCents against a billing cycle: a transfer from the
// funding account to the credit account, plus the cycle's paid-amount
// bookkeeping. The cycle moves to paid once fully covered. The balance
// effect rides the ordinary transfer reconciliation path.
func (s *Service) PayBill(ctx context.Context, cycleID ledger.CycleID, fromAccountID ledger.AccountID, amountCents int64, date ledger.Date) error {
	if amountCents <= 0 {
		return fmt.Errorf("%w: payment must be positive, got %d", ledger.ErrInvalidAmount, amountCents)
	}
	if _, err := ledger.ParseDate(string(date)); err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(store ledger.Store) error {
		cycle, err := store.GetCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		if cycle == nil {
			return ledger.ErrCycleNotFound
		}

		groupID := newID("pay")
		legs := []ledger.Entry{
			{
				ID:              ledger.EntryID(newID("txn")),
				UserID:          cycle.UserID,
				AccountID:       fromAccountID,
				Amount:          -amountCents,
				Type:            ledger.EntryTransfer,
				Paid:            true,
				Date:            date,
				Description:     "credit card payment",
				TransferGroupID: groupID,
			},
			{
				ID:              ledger.EntryID(newID("txn")),
				UserID:          cycle.UserID,
				AccountID:       cycle.AccountID,
				Amount:          amountCents,
				Type:            ledger.EntryTransfer,
				Paid:            true,
				Date:            date,
				Description:     "credit card payment",
				TransferGroupID: groupID,
			},
		}

		for i := range legs {
			leg := legs[i]
			deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventInsert, New: &leg})
			if err != nil {
				return err
			}
			if err := checkOverdraft(ctx, store, deltas); err != nil {
				return err
			}
			if err := store.InsertEntry(ctx, leg); err != nil {
				return err
			}
			if err := applyDeltas(ctx, store, deltas); err != nil {
				return err
			}
		}

		cycle.AmountPaid += amountCents
		if cycle.Status == ledger.CycleClosed && cycle.AmountPaid >= cycle.TotalAmount {
			cycle.Status = ledger.CyclePaid
		}
		return store.UpdateCycle(ctx, *cycle)
	})
}

// CyclesByAccount lists an account's billing cycles, oldest first.
func (s *Service) CyclesByAccount(ctx context.Context, accountID ledger.AccountID) ([]ledger.Cycle, error) {
	return s.Store.CyclesByAccount(ctx, accountID)
}
