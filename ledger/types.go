/*
Package ledger provides the core finance ledger engine.

PURPOSE:
  This package contains the domain types and algorithms for keeping cached
  account balances consistent with an append-mostly ledger of transactions.
  The ledger is the source of truth; every balance is a derived value that
  is only ever mutated through the delta function in reconcile.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A money container with a cached, derived balance (cents)
  - Entry: One recorded movement of money, signed, dated
  - Cycle: A credit-card billing period between a start and closing date
  - User/Account/Entry/Cycle IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Integer money: All amounts are int64 minor units (cents). No floats.
  2. Derived balances: Account.Balance is a cache of the settled ledger,
     never a second source of truth.
  3. Type Safety: Strong typing for IDs prevents mixing account/entry IDs.
  4. Calendar dates: Entry dates are YYYY-MM-DD strings, compared
     lexicographically (see date.go).

SEE ALSO:
  - reconcile.go: Balance delta computation from ledger events
  - billing.go: Credit-card billing cycle planning
  - report.go: Read-only analytics over the ledger
  - store.go: Persistence interfaces
*/
package ledger

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type AccountID string
type EntryID string
type CycleID string
type CategoryID string

// =============================================================================
// ACCOUNT - Money container with a cached balance
// =============================================================================

type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountInvestment AccountType = "investment"
)

// IsCredit reports whether the account carries credit billing parameters.
func (t AccountType) IsCredit() bool { return t == AccountCredit }

// Account is a money container. Balance is DERIVED: it always equals the sum
// of settled ledger entries referencing this account (primary sign-positive,
// transfer counter-account sign-negative). Only the reconciliation deltas may
// mutate it; it is never overwritten from client input.
type Account struct {
	ID      AccountID
	UserID  UserID
	Name    string
	Type    AccountType
	Balance int64 // cents, derived from the ledger

	// Credit billing parameters. Only meaningful for AccountCredit.
	CreditLimit *int64 // cents
	CloseDay    *int   // day-of-month the billing cycle closes, 1..31
	DueDay      *int   // day-of-month payment is due, 1..31

	CreatedAt time.Time
}

// =============================================================================
// ENTRY - One ledger row (a transaction)
// =============================================================================

type EntryType string

const (
	EntryIncome   EntryType = "income"
	EntryExpense  EntryType = "expense"
	EntryTransfer EntryType = "transfer"
)

// Entry is one recorded movement of money.
//
// INVARIANTS:
//   - CounterAccountID is set only when Type == EntryTransfer.
//   - Unsettled entries (Paid == false) never contribute to any balance.
//   - Amount is signed cents: income legs positive, expense legs negative.
type Entry struct {
	ID        EntryID
	UserID    UserID
	AccountID AccountID

	// CounterAccountID links a single-row transfer to the other account.
	// The counter-account receives the negated contribution.
	CounterAccountID *AccountID

	Amount   int64 // signed cents
	Type     EntryType
	Paid     bool // settled; the single settlement flag (see DESIGN.md)
	Date     Date
	Category CategoryID

	Description      string
	IncludeInReports bool

	// Transfer pairing: both legs of a composite transfer share this ID.
	TransferGroupID string

	// Installment linkage: a purchase split into N monthly entries.
	InstallmentParentID *EntryID
	InstallmentSeq      int // 1-based, 0 when not an installment
	InstallmentTotal    int

	// Bank reconciliation bolt-on. Unrelated to balance computation.
	Reconciled    bool
	BankReference string
	ReconciledAt  *time.Time

	CreatedAt time.Time
}

// IsTransferLeg reports whether this entry represents money moved between the
// user's own accounts, either as a single counter-account row or as one leg of
// a composite transfer pair.
func (e Entry) IsTransferLeg() bool {
	return e.Type == EntryTransfer
}

// =============================================================================
// CYCLE - Credit-card billing period
// =============================================================================

type CycleStatus string

const (
	CycleOpen   CycleStatus = "open"
	CycleClosed CycleStatus = "closed"
	CyclePaid   CycleStatus = "paid"
)

// Cycle is one credit-card billing period.
//
// INVARIANT: at most one cycle per (AccountID, ClosingDate). The store
// enforces this with a uniqueness constraint; the scheduler relies on it
// for idempotent creation.
type Cycle struct {
	ID        CycleID
	UserID    UserID
	AccountID AccountID
	Status    CycleStatus

	StartDate   Date
	ClosingDate Date
	DueDate     Date

	TotalAmount int64 // cents accrued in the period, computed at close
	AmountPaid  int64 // cents paid against the cycle

	CreatedAt time.Time
}
