/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The service and API layers classify these to decide HTTP status codes
  and whether a scheduler pass should continue.

ERROR CATEGORIES:
  1. Validation errors - Rejected before any write, no partial effect
  2. Business-rule errors - Soft rules evaluated before commit (overdraft)
  3. Store errors - Persistence-level failures
  4. Scheduler config errors - Skip the account, log, continue

SEE ALSO:
  - reconcile.go: Uses these errors
  - billing.go: Uses ErrInvalidBillingDay
  - finance/service.go: Wraps these with domain context
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned for malformed or out-of-order calendar dates.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidAmount is returned for zero or malformed amounts where a
	// signed non-zero amount is required.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrMissingAccount is returned when a required account reference is absent.
	ErrMissingAccount = errors.New("missing account reference")

	// ErrCounterAccountMismatch is returned when a counter-account is present
	// on a non-transfer entry. Exactly one of {no counter-account} or
	// {counter-account + transfer type} must hold.
	ErrCounterAccountMismatch = errors.New("counter-account requires transfer type")

	// ErrInsufficientFunds is returned when a write would overdraw a
	// non-credit account. This is a soft business rule checked before commit;
	// the reconciliation engine itself never refuses negative balances.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidBillingDay is returned when a credit account's close or due
	// day-of-month is outside 1..31. The billing pass skips such accounts.
	ErrInvalidBillingDay = errors.New("invalid billing day-of-month")

	// ErrDuplicateCycle is returned when a cycle already exists for an
	// (account, closing date) pair. Expected during idempotent re-runs.
	ErrDuplicateCycle = errors.New("billing cycle already exists")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEntryNotFound is returned when a referenced ledger entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrCycleNotFound is returned when a referenced billing cycle doesn't exist.
	ErrCycleNotFound = errors.New("billing cycle not found")

	// ErrNotCreditAccount is returned when a billing operation targets an
	// account without credit billing parameters.
	ErrNotCreditAccount = errors.New("not a credit account")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError details an overdraft rejection.
type InsufficientFundsError struct {
	AccountID AccountID
	Balance   int64 // cents before the write
	Requested int64 // cents the write would remove
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on %s: balance %d, requested %d cents",
		e.AccountID, e.Balance, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// BillingConfigError details a malformed billing configuration. The periodic
// pass logs these and continues with the remaining accounts.
type BillingConfigError struct {
	AccountID AccountID
	Field     string // "close_day" or "due_day"
	Value     int
}

func (e *BillingConfigError) Error() string {
	return fmt.Sprintf("account %s: %s=%d outside 1..31", e.AccountID, e.Field, e.Value)
}

func (e *BillingConfigError) Unwrap() error { return ErrInvalidBillingDay }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input or a
// business-rule rejection (4xx territory).
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrMissingAccount) ||
		errors.Is(err, ErrCounterAccountMismatch) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidBillingDay) ||
		errors.Is(err, ErrNotCreditAccount)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrCycleNotFound)
}

// IsDuplicate returns true if the error indicates an idempotency-style
// conflict that is safe to ignore on retry.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateCycle)
}
