/*
reconcile.go - Balance reconciliation engine

PURPOSE:
  Keeps cached account balances consistent with the ledger. Every ledger
  mutation (insert, update, delete) is turned into a set of (account, delta)
  pairs that the caller applies inside the SAME atomic unit of work as the
  mutation itself. No reader ever observes a ledger change without its
  balance effect.

THE CONTRIBUTION MODEL:
  An entry contributes its signed amount to its account's balance while, and
  only while, it is settled (Paid == true). Reconciliation therefore computes:

    old_contribution = -old.Amount  if old exists and old.Paid, else 0
    new_contribution = +new.Amount  if new exists and new.Paid, else 0

  and sums them. This makes every edge case fall out of one rule:
  - paid flip false->true adds the amount exactly once
  - paid flip true->false removes it exactly once
  - amount edit while paid applies the NET difference
  - account move applies old_contribution to the old account and
    new_contribution to the new one
  - a transfer row's counter-account receives the NEGATED contribution

CRITICAL INVARIANTS:
  1. PURE: no I/O, no clock, no randomness. Fully unit-testable.
  2. EXACT: int64 cent arithmetic only. No rounding ever happens here.
  3. AT-MOST-ONE delta per account per event: deltas to the same account
     are merged so the store performs a single increment per account.
  4. NEVER refuses a result: negative balances are reflected, not rejected.
     Overdraft protection is a service-layer business rule.

SEE ALSO:
  - store.go: ApplyBalanceDelta, the only balance write path
  - finance/service.go: Runs mutation + reconciliation in one WithTx unit
*/
package ledger

import "fmt"

// =============================================================================
// EVENT - Ledger mutation as an explicit value
// =============================================================================

type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is one ledger mutation. Old is nil for inserts, New is nil for
// deletes, both are set for updates.
type Event struct {
	Kind EventKind
	Old  *Entry
	New  *Entry
}

// BalanceDelta is one balance adjustment to apply. Deltas are increments,
// never absolute values: the store applies them as
// "balance = balance + delta" under row-level serialization.
type BalanceDelta struct {
	AccountID AccountID
	Delta     int64 // cents
}

// =============================================================================
// RECONCILE - The delta function
// =============================================================================

// Reconcile computes the balance deltas for a ledger event. The result is
// ordered deterministically (primary accounts before counter-accounts, old
// before new) and contains at most one delta per account; zero deltas are
// dropped.
func Reconcile(ev Event) ([]BalanceDelta, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	oldContribution := int64(0)
	if ev.Old != nil && ev.Old.Paid {
		oldContribution = -ev.Old.Amount
	}
	newContribution := int64(0)
	if ev.New != nil && ev.New.Paid {
		newContribution = ev.New.Amount
	}

	var deltas []BalanceDelta

	// Primary account(s).
	if ev.Old != nil && ev.New != nil && ev.Old.AccountID != ev.New.AccountID {
		// Account moved: unwind from the old account, apply to the new one.
		deltas = append(deltas,
			BalanceDelta{AccountID: ev.Old.AccountID, Delta: oldContribution},
			BalanceDelta{AccountID: ev.New.AccountID, Delta: newContribution},
		)
	} else {
		account := primaryAccount(ev)
		deltas = append(deltas, BalanceDelta{AccountID: account, Delta: oldContribution + newContribution})
	}

	// Counter-account(s): transfers mirror the contribution with opposite sign.
	if ev.Old != nil && ev.Old.Type == EntryTransfer && ev.Old.CounterAccountID != nil {
		deltas = append(deltas, BalanceDelta{AccountID: *ev.Old.CounterAccountID, Delta: -oldContribution})
	}
	if ev.New != nil && ev.New.Type == EntryTransfer && ev.New.CounterAccountID != nil {
		deltas = append(deltas, BalanceDelta{AccountID: *ev.New.CounterAccountID, Delta: -newContribution})
	}

	return mergeDeltas(deltas), nil
}

func primaryAccount(ev Event) AccountID {
	if ev.New != nil {
		return ev.New.AccountID
	}
	return ev.Old.AccountID
}

func validateEvent(ev Event) error {
	switch ev.Kind {
	case EventInsert:
		if ev.Old != nil || ev.New == nil {
			return fmt.Errorf("insert event: want old=nil new!=nil")
		}
	case EventUpdate:
		if ev.Old == nil || ev.New == nil {
			return fmt.Errorf("update event: want old!=nil new!=nil")
		}
	case EventDelete:
		if ev.Old == nil || ev.New != nil {
			return fmt.Errorf("delete event: want old!=nil new=nil")
		}
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	for _, e := range []*Entry{ev.Old, ev.New} {
		if e == nil {
			continue
		}
		if e.AccountID == "" {
			return ErrMissingAccount
		}
		if e.CounterAccountID != nil && e.Type != EntryTransfer {
			return ErrCounterAccountMismatch
		}
	}
	return nil
}

// mergeDeltas collapses deltas to the same account into one and drops zeros,
// preserving first-seen order.
func mergeDeltas(deltas []BalanceDelta) []BalanceDelta {
	totals := make(map[AccountID]int64, len(deltas))
	var order []AccountID
	for _, d := range deltas {
		if _, seen := totals[d.AccountID]; !seen {
			order = append(order, d.AccountID)
		}
		totals[d.AccountID] += d.Delta
	}

	var merged []BalanceDelta
	for _, id := range order {
		if totals[id] != 0 {
			merged = append(merged, BalanceDelta{AccountID: id, Delta: totals[id]})
		}
	}
	return merged
}
