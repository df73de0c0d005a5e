/*
store.go - Persistence interfaces for the ledger engine

PURPOSE:
  Defines the interface between domain logic and the database. The Store
  is the only component allowed to touch rows; the service layer composes
  its methods inside WithTx so a ledger mutation and its balance update
  commit or roll back together.

KEY INTERFACES:
  Store:   Entry, account, and billing cycle persistence
  TxStore: Transactional composition (atomic multi-table writes)

BALANCE WRITE CONTRACT:
  ApplyBalanceDelta is the ONLY way a balance changes. It is an increment
  ("balance = balance + delta"), never an overwrite, so the database's
  row-level serialization orders concurrent updates to one account. Client
  data never reaches the balance column directly.

IDEMPOTENT CYCLE CREATION:
  InsertCycleIfAbsent relies on the store's uniqueness constraint on
  (account_id, closing_date). A duplicate insert reports created=false and
  no error - this is what makes repeated scheduler runs safe.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - reconcile.go: Produces the deltas ApplyBalanceDelta consumes
  - finance/service.go: Composes these calls inside WithTx
*/
package ledger

import "context"

// =============================================================================
// STORE - Row-level persistence
// =============================================================================

// Store handles persistence of accounts, entries, and billing cycles.
// Mutating methods must only be called inside a WithTx unit alongside their
// reconciliation deltas.
type Store interface {
	// --- Accounts ---

	SaveAccount(ctx context.Context, acct Account) error
	GetAccount(ctx context.Context, id AccountID) (*Account, error)
	ListAccounts(ctx context.Context, userID UserID) ([]Account, error)

	// CreditAccounts returns every credit-type account across users, for the
	// periodic billing pass.
	CreditAccounts(ctx context.Context) ([]Account, error)

	// DeleteAccount removes an account and cascades to its entries and
	// cycles. Explicit user action only.
	DeleteAccount(ctx context.Context, id AccountID) error

	// ApplyBalanceDelta increments an account's cached balance. The sole
	// balance write path.
	ApplyBalanceDelta(ctx context.Context, id AccountID, delta int64) error

	// --- Entries ---

	InsertEntry(ctx context.Context, e Entry) error
	GetEntry(ctx context.Context, id EntryID) (*Entry, error)
	UpdateEntry(ctx context.Context, e Entry) error
	DeleteEntry(ctx context.Context, id EntryID) error

	// EntriesByUser returns a user's entries with Date in [from, to],
	// ordered by date then creation time.
	EntriesByUser(ctx context.Context, userID UserID, from, to Date) ([]Entry, error)

	// EntriesByAccount returns entries whose primary account matches,
	// with Date in [from, to].
	EntriesByAccount(ctx context.Context, accountID AccountID, from, to Date) ([]Entry, error)

	// UnreconciledEntries returns settled entries on the account in range
	// that carry no bank reconciliation mark.
	UnreconciledEntries(ctx context.Context, accountID AccountID, from, to Date) ([]Entry, error)

	// --- Billing cycles ---

	// OpenCycles returns the account's cycles in status open.
	OpenCycles(ctx context.Context, accountID AccountID) ([]Cycle, error)

	// CloseCyclesThrough moves every open cycle with closing date <= through
	// to closed, setting each cycle's accrued total from the settled expense
	// entries in its window. Returns the number of cycles closed.
	CloseCyclesThrough(ctx context.Context, accountID AccountID, through Date) (int, error)

	// InsertCycleIfAbsent inserts the cycle unless one already exists for
	// its (account, closing date). Reports whether a row was created.
	InsertCycleIfAbsent(ctx context.Context, c Cycle) (created bool, err error)

	GetCycle(ctx context.Context, id CycleID) (*Cycle, error)
	UpdateCycle(ctx context.Context, c Cycle) error
	CyclesByAccount(ctx context.Context, accountID AccountID) ([]Cycle, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic composition
// =============================================================================

// TxStore wraps Store with transaction support. Every ledger mutation and
// its balance deltas run inside one WithTx call; if fn errors, nothing is
// durably visible.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
