// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/finance-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	accounts map[ledger.AccountID]ledger.Account
	entries  map[ledger.EntryID]ledger.Entry
	cycles   map[ledger.CycleID]ledger.Cycle

	// cycleKeys mirrors the sqlite uniqueness constraint on
	// (account_id, closing_date).
	cycleKeys map[cycleKey]ledger.CycleID
}

type cycleKey struct {
	AccountID   ledger.AccountID
	ClosingDate ledger.Date
}

func NewMemory() *Memory {
	return &Memory{
		accounts:  make(map[ledger.AccountID]ledger.Account),
		entries:   make(map[ledger.EntryID]ledger.Entry),
		cycles:    make(map[ledger.CycleID]ledger.Cycle),
		cycleKeys: make(map[cycleKey]ledger.CycleID),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) SaveAccount(_ context.Context, acct ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acct.ID] = acct
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(id)
}

func (m *Memory) getAccountLocked(id ledger.AccountID) (*ledger.Account, error) {
	acct, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	out := acct
	return &out, nil
}

func (m *Memory) ListAccounts(_ context.Context, userID ledger.UserID) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) CreditAccounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Account
	for _, a := range m.accounts {
		if a.Type.IsCredit() {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.accounts, id)
	for eid, e := range m.entries {
		if e.AccountID == id {
			delete(m.entries, eid)
		}
	}
	for cid, c := range m.cycles {
		if c.AccountID == id {
			delete(m.cycleKeys, cycleKey{AccountID: c.AccountID, ClosingDate: c.ClosingDate})
			delete(m.cycles, cid)
		}
	}
	return nil
}

func (m *Memory) ApplyBalanceDelta(_ context.Context, id ledger.AccountID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyBalanceDeltaLocked(id, delta)
}

func (m *Memory) applyBalanceDeltaLocked(id ledger.AccountID, delta int64) error {
	acct, ok := m.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	acct.Balance += delta
	m.accounts[id] = acct
	return nil
}

// =============================================================================
// ENTRIES
// =============================================================================

func (m *Memory) InsertEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	out := e
	return &out, nil
}

func (m *Memory) UpdateEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[e.ID]; !ok {
		return ledger.ErrEntryNotFound
	}
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, id ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return ledger.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *Memory) EntriesByUser(_ context.Context, userID ledger.UserID, from, to ledger.Date) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterEntries(func(e ledger.Entry) bool {
		return e.UserID == userID && inRange(e.Date, from, to)
	}), nil
}

func (m *Memory) EntriesByAccount(_ context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterEntries(func(e ledger.Entry) bool {
		return e.AccountID == accountID && inRange(e.Date, from, to)
	}), nil
}

func (m *Memory) UnreconciledEntries(_ context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterEntries(func(e ledger.Entry) bool {
		return e.AccountID == accountID && e.Paid && !e.Reconciled && inRange(e.Date, from, to)
	}), nil
}

func (m *Memory) filterEntries(keep func(ledger.Entry) bool) []ledger.Entry {
	var result []ledger.Entry
	for _, e := range m.entries {
		if keep(e) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func inRange(d, from, to ledger.Date) bool {
	return d.AfterOrEqual(from) && d.BeforeOrEqual(to)
}

// =============================================================================
// BILLING CYCLES
// =============================================================================

func (m *Memory) OpenCycles(_ context.Context, accountID ledger.AccountID) ([]ledger.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Cycle
	for _, c := range m.cycles {
		if c.AccountID == accountID && c.Status == ledger.CycleOpen {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClosingDate < result[j].ClosingDate })
	return result, nil
}

func (m *Memory) CloseCyclesThrough(_ context.Context, accountID ledger.AccountID, through ledger.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	closed := 0
	for id, c := range m.cycles {
		if c.AccountID != accountID || c.Status != ledger.CycleOpen || c.ClosingDate.After(through) {
			continue
		}
		c.Status = ledger.CycleClosed
		c.TotalAmount = m.accruedLocked(accountID, c.StartDate, c.ClosingDate)
		m.cycles[id] = c
		closed++
	}
	return closed, nil
}

// accruedLocked sums settled expenses on the account within the window.
func (m *Memory) accruedLocked(accountID ledger.AccountID, from, to ledger.Date) int64 {
	var total int64
	for _, e := range m.entries {
		if e.AccountID == accountID && e.Paid && e.Type == ledger.EntryExpense && inRange(e.Date, from, to) {
			total += -e.Amount
		}
	}
	return total
}

func (m *Memory) InsertCycleIfAbsent(_ context.Context, c ledger.Cycle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := cycleKey{AccountID: c.AccountID, ClosingDate: c.ClosingDate}
	if _, exists := m.cycleKeys[k]; exists {
		return false, nil
	}
	m.cycles[c.ID] = c
	m.cycleKeys[k] = c.ID
	return true, nil
}

func (m *Memory) GetCycle(_ context.Context, id ledger.CycleID) (*ledger.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cycles[id]
	if !ok {
		return nil, nil
	}
	out := c
	return &out, nil
}

func (m *Memory) UpdateCycle(_ context.Context, c ledger.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cycles[c.ID]; !ok {
		return ledger.ErrCycleNotFound
	}
	m.cycles[c.ID] = c
	return nil
}

func (m *Memory) CyclesByAccount(_ context.Context, accountID ledger.AccountID) ([]ledger.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Cycle
	for _, c := range m.cycles {
		if c.AccountID == accountID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClosingDate < result[j].ClosingDate })
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		accounts:  make(map[ledger.AccountID]ledger.Account, len(tm.accounts)),
		entries:   make(map[ledger.EntryID]ledger.Entry, len(tm.entries)),
		cycles:    make(map[ledger.CycleID]ledger.Cycle, len(tm.cycles)),
		cycleKeys: make(map[cycleKey]ledger.CycleID, len(tm.cycleKeys)),
	}
	for k, v := range tm.accounts {
		s.accounts[k] = v
	}
	for k, v := range tm.entries {
		s.entries[k] = v
	}
	for k, v := range tm.cycles {
		s.cycles[k] = v
	}
	for k, v := range tm.cycleKeys {
		s.cycleKeys[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.accounts = s.accounts
	tm.entries = s.entries
	tm.cycles = s.cycles
	tm.cycleKeys = s.cycleKeys
}

type memorySnapshot struct {
	accounts  map[ledger.AccountID]ledger.Account
	entries   map[ledger.EntryID]ledger.Entry
	cycles    map[ledger.CycleID]ledger.Cycle
	cycleKeys map[cycleKey]ledger.CycleID
}
