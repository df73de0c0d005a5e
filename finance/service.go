/*
Package finance is the domain service layer over the ledger engine.

PURPOSE:
  Composes storage, validation, and the reconciliation engine into the
  boundary operations the UI layer calls: insert/update/delete transaction,
  transfers, installments, bank reconciliation, analytics, and billing
  cycle maintenance.

ATOMICITY:
  Every ledger mutation and its balance deltas run inside one
  TxStore.WithTx unit. If any step fails, the whole mutation rolls back -
  no reader ever observes an entry without its balance effect.

BUSINESS RULES vs INVARIANTS:
  The overdraft check lives HERE, not in the engine: it is a soft rule
  evaluated before commit. The engine reflects whatever the ledger says,
  negative balances included.

SEE ALSO:
  - ledger/reconcile.go: The delta function this package applies
  - billing.go (this package): Periodic billing cycle maintenance
*/
package finance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warp/finance-engine/ledger"
)

// Service exposes the boundary operations of the finance core.
type Service struct {
	Store ledger.TxStore

	// TodayFunc supplies the current calendar date. Overridable in tests
	// and by the billing scheduler.
	TodayFunc func() ledger.Date
}

// NewService creates a service over the given transactional store.
func NewService(store ledger.TxStore) *Service {
	return &Service{
		Store:     store,
		TodayFunc: ledger.Today,
	}
}

var idSeq atomic.Int64

func newID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), idSeq.Add(1))
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccount validates and persists a new account. The initial balance
// is always zero; money arrives through ledger entries.
func (s *Service) CreateAccount(ctx context.Context, acct ledger.Account) (ledger.AccountID, error) {
	if acct.ID == "" {
		acct.ID = ledger.AccountID(newID("acc"))
	}
	if acct.UserID == "" || acct.Name == "" {
		return "", fmt.Errorf("%w: user and name are required", ledger.ErrMissingAccount)
	}
	switch acct.Type {
	case ledger.AccountChecking, ledger.AccountSavings, ledger.AccountCredit, ledger.AccountInvestment:
	default:
		return "", fmt.Errorf("unknown account type %q", acct.Type)
	}
	acct.Balance = 0
	if err := s.Store.SaveAccount(ctx, acct); err != nil {
		return "", err
	}
	return acct.ID, nil
}

func (s *Service) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	acct, err := s.Store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ledger.ErrAccountNotFound
	}
	return acct, nil
}

func (s *Service) ListAccounts(ctx context.Context, userID ledger.UserID) ([]ledger.Account, error) {
	return s.Store.ListAccounts(ctx, userID)
}

// DeleteAccount removes an account and everything referencing it.
// Explicit user action only; balances of other accounts are untouched
// (transfer counter-legs keep their history on their own account).
func (s *Service) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	return s.Store.DeleteAccount(ctx, id)
}

// =============================================================================
// LEDGER MUTATIONS - Each runs mutation + reconciliation in one unit
// =============================================================================

// InsertTransaction validates the entry, writes it, and applies its balance
// deltas atomically.
func (s *Service) InsertTransaction(ctx context.Context, e ledger.Entry) (ledger.EntryID, error) {
	if e.ID == "" {
		e.ID = ledger.EntryID(newID("txn"))
	}
	if err := validateEntry(e); err != nil {
		return "", err
	}

	err := s.Store.WithTx(ctx, func(store ledger.Store) error {
		deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventInsert, New: &e})
		if err != nil {
			return err
		}
		if err := checkOverdraft(ctx, store, deltas); err != nil {
			return err
		}
		if err := store.InsertEntry(ctx, e); err != nil {
			return err
		}
		return applyDeltas(ctx, store, deltas)
	})
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

// EntryPatch is a partial update to an entry. Nil fields are left as-is.
type EntryPatch struct {
	AccountID        *ledger.AccountID
	CounterAccountID **ledger.AccountID // set to new(…) to clear
	Amount           *int64
	Type             *ledger.EntryType
	Paid             *bool
	Date             *ledger.Date
	Category         *ledger.CategoryID
	Description      *string
	IncludeInReports *bool
	Reconciled       *bool
	BankReference    *string
	ReconciledAt     **time.Time
}

// UpdateTransaction applies a partial edit and reconciles the NET balance
// difference: an amount edit of 1000 -> 1500 on a settled entry moves the
// balance by exactly +500.
func (s *Service) UpdateTransaction(ctx context.Context, id ledger.EntryID, patch EntryPatch) error {
	return s.Store.WithTx(ctx, func(store ledger.Store) error {
		old, err := store.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if old == nil {
			return ledger.ErrEntryNotFound
		}

		updated := applyPatch(*old, patch)
		if err := validateEntry(updated); err != nil {
			return err
		}

		deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventUpdate, Old: old, New: &updated})
		if err != nil {
			return err
		}
		if err := checkOverdraft(ctx, store, deltas); err != nil {
			return err
		}
		if err := store.UpdateEntry(ctx, updated); err != nil {
			return err
		}
		return applyDeltas(ctx, store, deltas)
	})
}

// DeleteTransaction removes an entry, reversing its balance contribution.
// No overdraft check: a deletion must always succeed so history can be
// corrected.
func (s *Service) DeleteTransaction(ctx context.Context, id ledger.EntryID) error {
	return s.Store.WithTx(ctx, func(store ledger.Store) error {
		old, err := store.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if old == nil {
			return ledger.ErrEntryNotFound
		}

		deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventDelete, Old: old})
		if err != nil {
			return err
		}
		if err := store.DeleteEntry(ctx, id); err != nil {
			return err
		}
		return applyDeltas(ctx, store, deltas)
	})
}

func (s *Service) GetTransaction(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	e, err := s.Store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ledger.ErrEntryNotFound
	}
	return e, nil
}

func (s *Service) TransactionsByAccount(ctx context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	return s.Store.EntriesByAccount(ctx, accountID, from, to)
}

// =============================================================================
// TRANSFERS - Composite operation, same reconciliation path as inserts
// =============================================================================

// CreateTransfer moves amountCents from one account to another as a pair of
// settled transfer legs sharing a group ID: a negative leg on the source
// and a positive leg on the destination. There is no separate
// balance-adjustment code path - each leg reconciles like any insert.
func (s *Service) CreateTransfer(ctx context.Context, userID ledger.UserID, from, to ledger.AccountID, amountCents int64, date ledger.Date) (string, error) {
	if amountCents <= 0 {
		return "", fmt.Errorf("%w: transfer amount must be positive, got %d", ledger.ErrInvalidAmount, amountCents)
	}
	if from == "" || to == "" || from == to {
		return "", fmt.Errorf("%w: transfer needs two distinct accounts", ledger.ErrMissingAccount)
	}
	if _, err := ledger.ParseDate(string(date)); err != nil {
		return "", err
	}

	groupID := newID("trf")
	legs := []ledger.Entry{
		{
			ID:              ledger.EntryID(newID("txn")),
			UserID:          userID,
			AccountID:       from,
			Amount:          -amountCents,
			Type:            ledger.EntryTransfer,
			Paid:            true,
			Date:            date,
			TransferGroupID: groupID,
		},
		{
			ID:              ledger.EntryID(newID("txn")),
			UserID:          userID,
			AccountID:       to,
			Amount:          amountCents,
			Type:            ledger.EntryTransfer,
			Paid:            true,
			Date:            date,
			TransferGroupID: groupID,
		},
	}

	err := s.Store.WithTx(ctx, func(store ledger.Store) error {
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
		return nil
	})
	if err != nil {
		return "", err
	}
	return groupID, nil
}

// =============================================================================
// INSTALLMENTS - A purchase split into N linked monthly entries
// =============================================================================

// CreateInstallments splits a purchase into n monthly entries linked by a
// parent ID, one per month starting at base.Date. The base amount is the
// TOTAL; each installment carries total/n cents with the remainder cents
// folded into the first installment so the sum is exact.
func (s *Service) CreateInstallments(ctx context.Context, base ledger.Entry, n int) ([]ledger.EntryID, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: installments need n >= 2, got %d", ledger.ErrInvalidAmount, n)
	}
	if base.ID == "" {
		base.ID = ledger.EntryID(newID("txn"))
	}
	if err := validateEntry(base); err != nil {
		return nil, err
	}

	per := base.Amount / int64(n)
	remainder := base.Amount - per*int64(n)
	parentID := base.ID

	var ids []ledger.EntryID
	err := s.Store.WithTx(ctx, func(store ledger.Store) error {
		date := base.Date
		for i := 1; i <= n; i++ {
			leg := base
			if i > 1 {
				leg.ID = ledger.EntryID(newID("txn"))
			}
			leg.Amount = per
			if i == 1 {
				leg.Amount += remainder
			}
			leg.Date = date
			leg.InstallmentParentID = &parentID
			leg.InstallmentSeq = i
			leg.InstallmentTotal = n

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

			ids = append(ids, leg.ID)

			// Same day-of-month next month, clamped to month length.
			y, m := ledger.NextMonth(date.Year(), date.Month())
			date = ledger.DayOfMonth(y, m, base.Date.Day())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// =============================================================================
// BANK RECONCILIATION - Bookkeeping bolt-on, no balance effect
// =============================================================================

// ReconcileTransaction tags an entry with an external bank reference and
// date. It rides the ordinary update path; since amount and paid flag are
// unchanged the reconciliation engine yields zero deltas by construction.
func (s *Service) ReconcileTransaction(ctx context.Context, id ledger.EntryID, bankReference string, when ledger.Date) error {
	if bankReference == "" {
		return fmt.Errorf("%w: bank reference is required", ledger.ErrInvalidAmount)
	}
	if _, err := ledger.ParseDate(string(when)); err != nil {
		return err
	}

	reconciled := true
	at := when.Time()
	atPtr := &at
	return s.UpdateTransaction(ctx, id, EntryPatch{
		Reconciled:    &reconciled,
		BankReference: &bankReference,
		ReconciledAt:  &atPtr,
	})
}

// UnreconciledTransactions lists settled entries on the account in range
// that have no bank mark yet.
func (s *Service) UnreconciledTransactions(ctx context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	if to.Before(from) {
		return nil, ledger.ErrInvalidDate
	}
	return s.Store.UnreconciledEntries(ctx, accountID, from, to)
}

// =============================================================================
// ANALYTICS
// =============================================================================

// GetAnalyticsReport builds the read-only analytics report for a user and
// inclusive date range.
func (s *Service) GetAnalyticsReport(ctx context.Context, userID ledger.UserID, from, to ledger.Date) (ledger.Report, error) {
	if _, err := ledger.ParseDate(string(from)); err != nil {
		return ledger.Report{}, err
	}
	if _, err := ledger.ParseDate(string(to)); err != nil {
		return ledger.Report{}, err
	}
	entries, err := s.Store.EntriesByUser(ctx, userID, from, to)
	if err != nil {
		return ledger.Report{}, err
	}
	return ledger.BuildReport(entries, from, to)
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func applyDeltas(ctx context.Context, store ledger.Store, deltas []ledger.BalanceDelta) error {
	for _, d := range deltas {
		if err := store.ApplyBalanceDelta(ctx, d.AccountID, d.Delta); err != nil {
			return err
		}
	}
	return nil
}

// checkOverdraft rejects writes that would push a NON-credit account below
// zero. Soft business rule: evaluated before commit, inside the same
// transaction, so the read is consistent with the write.
func checkOverdraft(ctx context.Context, store ledger.Store, deltas []ledger.BalanceDelta) error {
	for _, d := range deltas {
		if d.Delta >= 0 {
			continue
		}
		acct, err := store.GetAccount(ctx, d.AccountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledger.ErrAccountNotFound
		}
		if acct.Type.IsCredit() {
			continue
		}
		if acct.Balance+d.Delta < 0 {
			return &ledger.InsufficientFundsError{
				AccountID: acct.ID,
				Balance:   acct.Balance,
				Requested: -d.Delta,
			}
		}
	}
	return nil
}

func validateEntry(e ledger.Entry) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user is required", ledger.ErrMissingAccount)
	}
	if e.AccountID == "" {
		return ledger.ErrMissingAccount
	}
	if e.Amount == 0 {
		return fmt.Errorf("%w: amount must be non-zero", ledger.ErrInvalidAmount)
	}
	if _, err := ledger.ParseDate(string(e.Date)); err != nil {
		return err
	}
	switch e.Type {
	case ledger.EntryIncome:
		if e.Amount < 0 {
			return fmt.Errorf("%w: income amount must be positive", ledger.ErrInvalidAmount)
		}
	case ledger.EntryExpense:
		if e.Amount > 0 {
			return fmt.Errorf("%w: expense amount must be negative", ledger.ErrInvalidAmount)
		}
	case ledger.EntryTransfer:
		// Either leg sign is valid.
	default:
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
	if e.CounterAccountID != nil {
		if e.Type != ledger.EntryTransfer {
			return ledger.ErrCounterAccountMismatch
		}
		if *e.CounterAccountID == e.AccountID {
			return fmt.Errorf("%w: counter-account equals account", ledger.ErrCounterAccountMismatch)
		}
	}
	return nil
}

func applyPatch(e ledger.Entry, p EntryPatch) ledger.Entry {
	if p.AccountID != nil {
		e.AccountID = *p.AccountID
	}
	if p.CounterAccountID != nil {
		e.CounterAccountID = *p.CounterAccountID
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Paid != nil {
		e.Paid = *p.Paid
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.IncludeInReports != nil {
		e.IncludeInReports = *p.IncludeInReports
	}
	if p.Reconciled != nil {
		e.Reconciled = *p.Reconciled
	}
	if p.BankReference != nil {
		e.BankReference = *p.BankReference
	}
	if p.ReconciledAt != nil {
		e.ReconciledAt = *p.ReconciledAt
	}
	return e
}
