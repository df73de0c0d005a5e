/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  accounts:     Per-account cached balance and credit billing parameters
  transactions: The ledger of entries (amounts in integer cents)
  credit_bills: Billing cycles, one row per (account, closing date)

BALANCE WRITES:
  The only statement that touches accounts.balance is
  "UPDATE accounts SET balance = balance + ?". SQLite serializes writers,
  so concurrent increments to one account cannot be lost. Absolute
  overwrites of balance do not exist in this package.

DATES:
  All calendar dates are stored as YYYY-MM-DD text. Range scans are plain
  lexicographic comparisons, which match chronological order exactly.

IDEMPOTENT CYCLES:
  idx_credit_bills_unique on (account_id, closing_date) is load-bearing:
  InsertCycleIfAbsent uses INSERT ... ON CONFLICT DO NOTHING against it,
  which is what makes repeated billing maintenance runs safe.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/finance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/finance-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (cached balance is derived from the transactions table)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		credit_limit INTEGER,
		close_day INTEGER,
		due_day INTEGER,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user
		ON accounts(user_id);
	CREATE INDEX IF NOT EXISTS idx_accounts_type
		ON accounts(account_type);

	-- Transactions (the ledger; amounts are signed integer cents)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		counter_account_id TEXT REFERENCES accounts(id),
		amount INTEGER NOT NULL,
		entry_type TEXT NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		entry_date TEXT NOT NULL,
		category TEXT,
		description TEXT,
		include_in_reports BOOLEAN NOT NULL DEFAULT TRUE,
		transfer_group_id TEXT,
		installment_parent_id TEXT,
		installment_seq INTEGER NOT NULL DEFAULT 0,
		installment_total INTEGER NOT NULL DEFAULT 0,
		reconciled BOOLEAN NOT NULL DEFAULT FALSE,
		bank_reference TEXT,
		reconciled_at TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: per-user and per-account date range scans
	CREATE INDEX IF NOT EXISTS idx_transactions_user_date
		ON transactions(user_id, entry_date);
	CREATE INDEX IF NOT EXISTS idx_transactions_account_date
		ON transactions(account_id, entry_date);
	CREATE INDEX IF NOT EXISTS idx_transactions_transfer_group
		ON transactions(transfer_group_id) WHERE transfer_group_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_unreconciled
		ON transactions(account_id, entry_date) WHERE reconciled = FALSE;

	-- Credit-card billing cycles
	CREATE TABLE IF NOT EXISTS credit_bills (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'open',
		start_date TEXT NOT NULL,
		closing_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		total_amount INTEGER NOT NULL DEFAULT 0,
		amount_paid INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one cycle per (account, closing date). The billing
	-- scheduler's idempotency rests on this constraint.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_bills_unique
		ON credit_bills(account_id, closing_date);
	CREATE INDEX IF NOT EXISTS idx_credit_bills_account_status
		ON credit_bills(account_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// SaveAccount inserts or updates an account. The balance column is NOT
// written on update: balances only move through ApplyBalanceDelta.
func (s *Store) SaveAccount(ctx context.Context, acct ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, acct)
}

func saveAccount(ctx context.Context, db querier, acct ledger.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, name, account_type, balance, credit_limit, close_day, due_day, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			account_type = excluded.account_type,
			credit_limit = excluded.credit_limit,
			close_day = excluded.close_day,
			due_day = excluded.due_day
	`
	_, err := db.ExecContext(ctx, query,
		acct.ID, acct.UserID, acct.Name, acct.Type, acct.Balance,
		nullInt64(acct.CreditLimit), nullInt(acct.CloseDay), nullInt(acct.DueDay),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func getAccount(ctx context.Context, db querier, id ledger.AccountID) (*ledger.Account, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	acct, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID ledger.UserID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAccounts(ctx, s.db,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY name", userID)
}

func (s *Store) CreditAccounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAccounts(ctx, s.db,
		"SELECT "+accountColumns+" FROM accounts WHERE account_type = ? ORDER BY id",
		ledger.AccountCredit)
}

func (s *Store) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Entries and cycles cascade via foreign keys.
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	return err
}

func (s *Store) ApplyBalanceDelta(ctx context.Context, id ledger.AccountID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return applyBalanceDelta(ctx, s.db, id, delta)
}

func applyBalanceDelta(ctx context.Context, db querier, id ledger.AccountID, delta int64) error {
	res, err := db.ExecContext(ctx,
		"UPDATE accounts SET balance = balance + ? WHERE id = ?",
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

const accountColumns = "id, user_id, name, account_type, balance, credit_limit, close_day, due_day, created_at"

func queryAccounts(ctx context.Context, db querier, query string, args ...any) ([]ledger.Account, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var (
		acct        ledger.Account
		creditLimit sql.NullInt64
		closeDay    sql.NullInt64
		dueDay      sql.NullInt64
		createdAt   string
	)
	err := row.Scan(&acct.ID, &acct.UserID, &acct.Name, &acct.Type, &acct.Balance,
		&creditLimit, &closeDay, &dueDay, &createdAt)
	if err != nil {
		return nil, err
	}
	if creditLimit.Valid {
		v := creditLimit.Int64
		acct.CreditLimit = &v
	}
	if closeDay.Valid {
		v := int(closeDay.Int64)
		acct.CloseDay = &v
	}
	if dueDay.Valid {
		v := int(dueDay.Int64)
		acct.DueDay = &v
	}
	acct.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &acct, nil
}

// =============================================================================
// TRANSACTIONS (ledger entries)
// =============================================================================

const entryColumns = `id, user_id, account_id, counter_account_id, amount, entry_type, paid,
	entry_date, category, description, include_in_reports, transfer_group_id,
	installment_parent_id, installment_seq, installment_total,
	reconciled, bank_reference, reconciled_at, created_at`

func (s *Store) InsertEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertEntry(ctx, s.db, e)
}

func insertEntry(ctx context.Context, db querier, e ledger.Entry) error {
	query := `
		INSERT INTO transactions (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		e.ID, e.UserID, e.AccountID, nullAccountID(e.CounterAccountID),
		e.Amount, e.Type, e.Paid, e.Date, nullString(string(e.Category)),
		nullString(e.Description), e.IncludeInReports, nullString(e.TransferGroupID),
		nullEntryID(e.InstallmentParentID), e.InstallmentSeq, e.InstallmentTotal,
		e.Reconciled, nullString(e.BankReference), nullTime(e.ReconciledAt),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, id)
}

func getEntry(ctx context.Context, db querier, id ledger.EntryID) (*ledger.Entry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM transactions WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEntry(ctx, s.db, e)
}

func updateEntry(ctx context.Context, db querier, e ledger.Entry) error {
	query := `
		UPDATE transactions SET
			account_id = ?, counter_account_id = ?, amount = ?, entry_type = ?,
			paid = ?, entry_date = ?, category = ?, description = ?,
			include_in_reports = ?, reconciled = ?, bank_reference = ?, reconciled_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		e.AccountID, nullAccountID(e.CounterAccountID), e.Amount, e.Type,
		e.Paid, e.Date, nullString(string(e.Category)), nullString(e.Description),
		e.IncludeInReports, e.Reconciled, nullString(e.BankReference), nullTime(e.ReconciledAt),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEntry(ctx, s.db, id)
}

func deleteEntry(ctx context.Context, db querier, id ledger.EntryID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

const entriesByUserQuery = `
	SELECT ` + entryColumns + ` FROM transactions
	WHERE user_id = ? AND entry_date >= ? AND entry_date <= ?
	ORDER BY entry_date ASC, created_at ASC
`

const entriesByAccountQuery = `
	SELECT ` + entryColumns + ` FROM transactions
	WHERE account_id = ? AND entry_date >= ? AND entry_date <= ?
	ORDER BY entry_date ASC, created_at ASC
`

const unreconciledQuery = `
	SELECT ` + entryColumns + ` FROM transactions
	WHERE account_id = ? AND entry_date >= ? AND entry_date <= ?
	  AND paid = TRUE AND reconciled = FALSE
	ORDER BY entry_date ASC, created_at ASC
`

func (s *Store) EntriesByUser(ctx context.Context, userID ledger.UserID, from, to ledger.Date) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEntries(ctx, s.db, entriesByUserQuery, userID, from, to)
}

func (s *Store) EntriesByAccount(ctx context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEntries(ctx, s.db, entriesByAccountQuery, accountID, from, to)
}

func (s *Store) UnreconciledEntries(ctx context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEntries(ctx, s.db, unreconciledQuery, accountID, from, to)
}

func queryEntries(ctx context.Context, db querier, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		e                   ledger.Entry
		counterAccountID    sql.NullString
		category            sql.NullString
		description         sql.NullString
		transferGroupID     sql.NullString
		installmentParentID sql.NullString
		bankReference       sql.NullString
		reconciledAt        sql.NullString
		createdAt           string
	)
	err := rows.Scan(
		&e.ID, &e.UserID, &e.AccountID, &counterAccountID, &e.Amount, &e.Type, &e.Paid,
		&e.Date, &category, &description, &e.IncludeInReports, &transferGroupID,
		&installmentParentID, &e.InstallmentSeq, &e.InstallmentTotal,
		&e.Reconciled, &bankReference, &reconciledAt, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	if counterAccountID.Valid {
		id := ledger.AccountID(counterAccountID.String)
		e.CounterAccountID = &id
	}
	e.Category = ledger.CategoryID(category.String)
	e.Description = description.String
	e.TransferGroupID = transferGroupID.String
	if installmentParentID.Valid {
		id := ledger.EntryID(installmentParentID.String)
		e.InstallmentParentID = &id
	}
	e.BankReference = bankReference.String
	if reconciledAt.Valid {
		t, _ := time.Parse(time.RFC3339, reconciledAt.String)
		e.ReconciledAt = &t
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

// =============================================================================
// BILLING CYCLES
// =============================================================================

const cycleColumns = `id, user_id, account_id, status, start_date, closing_date, due_date,
	total_amount, amount_paid, created_at`

const openCyclesQuery = `
	SELECT ` + cycleColumns + ` FROM credit_bills
	WHERE account_id = ? AND status = 'open'
	ORDER BY closing_date ASC
`

const cyclesByAccountQuery = `
	SELECT ` + cycleColumns + ` FROM credit_bills
	WHERE account_id = ?
	ORDER BY closing_date ASC
`

func (s *Store) OpenCycles(ctx context.Context, accountID ledger.AccountID) ([]ledger.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryCycles(ctx, s.db, openCyclesQuery, accountID)
}

// CloseCyclesThrough closes every open cycle past its closing date, filling
// in the accrued total from the settled expenses inside the cycle window.
// Set-based so a scheduler that missed runs catches up in one statement.
func (s *Store) CloseCyclesThrough(ctx context.Context, accountID ledger.AccountID, through ledger.Date) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closeCyclesThrough(ctx, s.db, accountID, through)
}

func closeCyclesThrough(ctx context.Context, db querier, accountID ledger.AccountID, through ledger.Date) (int, error) {
	query := `
		UPDATE credit_bills SET
			status = 'closed',
			total_amount = COALESCE((
				SELECT -SUM(t.amount) FROM transactions t
				WHERE t.account_id = credit_bills.account_id
				  AND t.paid = TRUE AND t.entry_type = 'expense'
				  AND t.entry_date >= credit_bills.start_date
				  AND t.entry_date <= credit_bills.closing_date
			), 0)
		WHERE account_id = ? AND status = 'open' AND closing_date <= ?
	`
	res, err := db.ExecContext(ctx, query, accountID, through)
	if err != nil {
		return 0, fmt.Errorf("failed to close cycles: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// InsertCycleIfAbsent inserts a cycle unless one exists for the same
// (account, closing date). The silent conflict path is deliberate; it is
// what makes overlapping scheduler runs safe.
func (s *Store) InsertCycleIfAbsent(ctx context.Context, c ledger.Cycle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCycleIfAbsent(ctx, s.db, c)
}

func insertCycleIfAbsent(ctx context.Context, db querier, c ledger.Cycle) (bool, error) {
	query := `
		INSERT INTO credit_bills (` + cycleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, closing_date) DO NOTHING
	`
	res, err := db.ExecContext(ctx, query,
		c.ID, c.UserID, c.AccountID, c.Status,
		c.StartDate, c.ClosingDate, c.DueDate,
		c.TotalAmount, c.AmountPaid,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert cycle: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) GetCycle(ctx context.Context, id ledger.CycleID) (*ledger.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCycle(ctx, s.db, id)
}

func getCycle(ctx context.Context, db querier, id ledger.CycleID) (*ledger.Cycle, error) {
	cycles, err := queryCycles(ctx, db,
		"SELECT "+cycleColumns+" FROM credit_bills WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, nil
	}
	return &cycles[0], nil
}

func (s *Store) UpdateCycle(ctx context.Context, c ledger.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateCycle(ctx, s.db, c)
}

func updateCycle(ctx context.Context, db querier, c ledger.Cycle) error {
	res, err := db.ExecContext(ctx, `
		UPDATE credit_bills SET
			status = ?, start_date = ?, closing_date = ?, due_date = ?,
			total_amount = ?, amount_paid = ?
		WHERE id = ?
	`, c.Status, c.StartDate, c.ClosingDate, c.DueDate, c.TotalAmount, c.AmountPaid, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update cycle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrCycleNotFound
	}
	return nil
}

func (s *Store) CyclesByAccount(ctx context.Context, accountID ledger.AccountID) ([]ledger.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryCycles(ctx, s.db, cyclesByAccountQuery, accountID)
}

func queryCycles(ctx context.Context, db querier, query string, args ...any) ([]ledger.Cycle, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []ledger.Cycle
	for rows.Next() {
		var (
			c         ledger.Cycle
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.AccountID, &c.Status,
			&c.StartDate, &c.ClosingDate, &c.DueDate,
			&c.TotalAmount, &c.AmountPaid, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. Everything fn
// does through the passed store commits or rolls back together - this is
// how a ledger mutation and its balance deltas stay atomic.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes Store calls through an open *sql.Tx. It reuses the
// unexported helpers so the SQL lives in exactly one place.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveAccount(ctx context.Context, acct ledger.Account) error {
	return saveAccount(ctx, ts.tx, acct)
}

func (ts *txStore) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	return getAccount(ctx, ts.tx, id)
}

func (ts *txStore) ListAccounts(ctx context.Context, userID ledger.UserID) ([]ledger.Account, error) {
	return queryAccounts(ctx, ts.tx,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY name", userID)
}

func (ts *txStore) CreditAccounts(ctx context.Context) ([]ledger.Account, error) {
	return queryAccounts(ctx, ts.tx,
		"SELECT "+accountColumns+" FROM accounts WHERE account_type = ? ORDER BY id",
		ledger.AccountCredit)
}

func (ts *txStore) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	_, err := ts.tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	return err
}

func (ts *txStore) ApplyBalanceDelta(ctx context.Context, id ledger.AccountID, delta int64) error {
	return applyBalanceDelta(ctx, ts.tx, id, delta)
}

func (ts *txStore) InsertEntry(ctx context.Context, e ledger.Entry) error {
	return insertEntry(ctx, ts.tx, e)
}

func (ts *txStore) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	return getEntry(ctx, ts.tx, id)
}

func (ts *txStore) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	return updateEntry(ctx, ts.tx, e)
}

func (ts *txStore) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	return deleteEntry(ctx, ts.tx, id)
}

func (ts *txStore) EntriesByUser(ctx context.Context, userID ledger.UserID, from, to ledger.Date) ([]ledger.Entry, error) {
	return queryEntries(ctx, ts.tx, entriesByUserQuery, userID, from, to)
}

func (ts *txStore) EntriesByAccount(ctx context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	return queryEntries(ctx, ts.tx, entriesByAccountQuery, accountID, from, to)
}

func (ts *txStore) UnreconciledEntries(ctx context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	return queryEntries(ctx, ts.tx, unreconciledQuery, accountID, from, to)
}

func (ts *txStore) OpenCycles(ctx context.Context, accountID ledger.AccountID) ([]ledger.Cycle, error) {
	return queryCycles(ctx, ts.tx, openCyclesQuery, accountID)
}

func (ts *txStore) CloseCyclesThrough(ctx context.Context, accountID ledger.AccountID, through ledger.Date) (int, error) {
	return closeCyclesThrough(ctx, ts.tx, accountID, through)
}

func (ts *txStore) InsertCycleIfAbsent(ctx context.Context, c ledger.Cycle) (bool, error) {
	return insertCycleIfAbsent(ctx, ts.tx, c)
}

func (ts *txStore) GetCycle(ctx context.Context, id ledger.CycleID) (*ledger.Cycle, error) {
	return getCycle(ctx, ts.tx, id)
}

func (ts *txStore) UpdateCycle(ctx context.Context, c ledger.Cycle) error {
	return updateCycle(ctx, ts.tx, c)
}

func (ts *txStore) CyclesByAccount(ctx context.Context, accountID ledger.AccountID) ([]ledger.Cycle, error) {
	return queryCycles(ctx, ts.tx, cyclesByAccountQuery, accountID)
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullAccountID(id *ledger.AccountID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullEntryID(id *ledger.EntryID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
