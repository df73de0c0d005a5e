package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-engine/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func settledExpense(account string, amount int64) *ledger.Entry {
	return &ledger.Entry{
		ID:        "txn-1",
		UserID:    "user-1",
		AccountID: ledger.AccountID(account),
		Amount:    amount,
		Type:      ledger.EntryExpense,
		Paid:      true,
		Date:      "2025-03-10",
	}
}

func settledIncome(account string, amount int64) *ledger.Entry {
	return &ledger.Entry{
		ID:        "txn-1",
		UserID:    "user-1",
		AccountID: ledger.AccountID(account),
		Amount:    amount,
		Type:      ledger.EntryIncome,
		Paid:      true,
		Date:      "2025-03-10",
	}
}

// =============================================================================
// INSERT EVENTS
// =============================================================================

func TestReconcile_InsertSettledIncome_AddsAmount(t *testing.T) {
	// GIVEN: A settled income of 10000 cents on acc-1
	// WHEN: The insert is reconciled
	// THEN: acc-1 gets exactly one +10000 delta

	deltas, err := ledger.Reconcile(ledger.Event{
		Kind: ledger.EventInsert,
		New:  settledIncome("acc-1", 10000),
	})

	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, ledger.AccountID("acc-1"), deltas[0].AccountID)
	assert.Equal(t, int64(10000), deltas[0].Delta)
}

func TestReconcile_InsertSettledExpense_SubtractsAmount(t *testing.T) {
	// Expenses are stored negative, so the delta is the amount itself.
	deltas, err := ledger.Reconcile(ledger.Event{
		Kind: ledger.EventInsert,
		New:  settledExpense("acc-1", -2500),
	})

	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, int64(-2500), deltas[0].Delta)
}

func TestReconcile_InsertUnsettled_NoDeltas(t *testing.T) {
	// GIVEN: An unsettled (pending) expense
	// WHEN: The insert is reconciled
	// THEN: No balance moves at all

	e := settledExpense("acc-1", -2500)
	e.Paid = false

	deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventInsert, New: e})

	require.NoError(t, err)
	assert.Empty(t, deltas)
}

// =============================================================================
// DELETE EVENTS
// =============================================================================

func TestReconcile_DeleteSettled_ReversesContribution(t *testing.T) {
	// GIVEN: A settled expense of -2500 previously applied to acc-1
	// WHEN: The entry is deleted
	// THEN: acc-1 gets +2500 back, exactly reversing the insert

	deltas, err := ledger.Reconcile(ledger.Event{
		Kind: ledger.EventDelete,
		Old:  settledExpense("acc-1", -2500),
	})

	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, int64(2500), deltas[0].Delta)
}

func TestReconcile_DeleteUnsettled_NoDeltas(t *testing.T) {
	e := settledExpense("acc-1", -2500)
	e.Paid = false

	deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventDelete, Old: e})

	require.NoError(t, err)
	assert.Empty(t, deltas)
}

// =============================================================================
// UPDATE EVENTS
// =============================================================================

func TestReconcile_UpdateAmount_AppliesNetDifference(t *testing.T) {
	// GIVEN: A settled income of 10000 edited to 15000
	// WHEN: The update is reconciled
	// THEN: The balance moves by exactly +5000, not -10000 then +15000

	old := settledIncome("acc-1", 10000)
	updated := settledIncome("acc-1", 15000)

	deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventUpdate, Old: old, New: updated})

	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, int64(5000), deltas[0].Delta)
}

func TestReconcile_UpdateNoEffectiveChange_NoDeltas(t *testing.T) {
	// Editing only the description must not touch balances.
	old := settledIncome("acc-1", 10000)
	updated := settledIncome("acc-1", 10000)
	updated.Description = "salary, corrected label"

	deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventUpdate, Old: old, New: updated})

	require.NoError(t, err)
	assert.Empty(t, deltas)
}

func TestReconcile_SettleFlip_AddsExactlyOnce(t *testing.T) {
	// GIVEN: An unsettled income of 10000
	// WHEN: It flips to settled
	// THEN: +10000 applies exactly once

	old := settledIncome("acc-1", 10000)
	old.Paid = false
	updated := settledIncome("acc-1", 10000)

	deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventUpdate, Old: old, New: updated})

	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, int64(10000), deltas[0].Delta)
}

func TestReconcile_UnsettleFlip_RemovesExactlyOnce(t *testing.T) {
	old := settledIncome("acc-1", 10000)
	updated := settledIncome("acc-1", 10000)
	updated.Paid = false

	deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventUpdate, Old: old, New: updated})

	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, int64(-10000), deltas[0].Delta)
}

func TestReconcile_AccountMove_UnwindsOldAppliesNew(t *testing.T) {
	// GIVEN: A settled expense of -2500 on acc-1
	// WHEN: It moves to acc-2
	// THEN: acc-1 gets +2500 back and acc-2 gets -2500

	old := settledExpense("acc-1", -2500)
	updated := settledExpense("acc-2", -2500)

	deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventUpdate, Old: old, New: updated})

	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, ledger.BalanceDelta{AccountID: "acc-1", Delta: 2500}, deltas[0])
	assert.Equal(t, ledger.BalanceDelta{AccountID: "acc-2", Delta: -2500}, deltas[1])
}

func TestReconcile_AccountMoveWhileUnsettled_NoDeltas(t *testing.T) {
	old := settledExpense("acc-1", -2500)
	old.Paid = false
	updated := settledExpense("acc-2", -2500)
	updated.Paid = false

	deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventUpdate, Old: old, New: updated})

	require.NoError(t, err)
	assert.Empty(t, deltas)
}

// =============================================================================
// TRANSFER ROWS (counter-account form)
// =============================================================================

func TestReconcile_TransferInsert_SymmetricDeltas(t *testing.T) {
	// GIVEN: A settled transfer of -5000 on acc-1 with counter-account acc-2
	// WHEN: The insert is reconciled
	// THEN: acc-1 moves -5000 and acc-2 moves +5000; the sum is zero

	counter := ledger.AccountID("acc-2")
	e := &ledger.Entry{
		ID:               "txn-1",
		UserID:           "user-1",
		AccountID:        "acc-1",
		CounterAccountID: &counter,
		Amount:           -5000,
		Type:             ledger.EntryTransfer,
		Paid:             true,
		Date:             "2025-03-10",
	}

	deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventInsert, New: e})

	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, ledger.BalanceDelta{AccountID: "acc-1", Delta: -5000}, deltas[0])
	assert.Equal(t, ledger.BalanceDelta{AccountID: "acc-2", Delta: 5000}, deltas[1])
	assert.Zero(t, deltas[0].Delta+deltas[1].Delta)
}

func TestReconcile_TransferDelete_ReversesBothLegs(t *testing.T) {
	counter := ledger.AccountID("acc-2")
	e := &ledger.Entry{
		ID:               "txn-1",
		UserID:           "user-1",
		AccountID:        "acc-1",
		CounterAccountID: &counter,
		Amount:           -5000,
		Type:             ledger.EntryTransfer,
		Paid:             true,
		Date:             "2025-03-10",
	}

	deltas, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventDelete, Old: e})

	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, ledger.BalanceDelta{AccountID: "acc-1", Delta: 5000}, deltas[0])
	assert.Equal(t, ledger.BalanceDelta{AccountID: "acc-2", Delta: -5000}, deltas[1])
}

// =============================================================================
// EVENT VALIDATION
// =============================================================================

func TestReconcile_MalformedEvents_Rejected(t *testing.T) {
	e := settledIncome("acc-1", 100)

	cases := []struct {
		name string
		ev   ledger.Event
	}{
		{"insert with old", ledger.Event{Kind: ledger.EventInsert, Old: e, New: e}},
		{"insert without new", ledger.Event{Kind: ledger.EventInsert}},
		{"update without old", ledger.Event{Kind: ledger.EventUpdate, New: e}},
		{"delete with new", ledger.Event{Kind: ledger.EventDelete, Old: e, New: e}},
		{"unknown kind", ledger.Event{Kind: "upsert", New: e}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Reconcile(tc.ev)
			assert.Error(t, err)
		})
	}
}

func TestReconcile_CounterAccountOnNonTransfer_Rejected(t *testing.T) {
	counter := ledger.AccountID("acc-2")
	e := settledExpense("acc-1", -100)
	e.CounterAccountID = &counter

	_, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventInsert, New: e})

	assert.ErrorIs(t, err, ledger.ErrCounterAccountMismatch)
}

func TestReconcile_MissingAccount_Rejected(t *testing.T) {
	e := settledIncome("", 100)

	_, err := ledger.Reconcile(ledger.Event{Kind: ledger.EventInsert, New: e})

	assert.ErrorIs(t, err, ledger.ErrMissingAccount)
}
