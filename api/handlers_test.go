package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-engine/api"
	"github.com/warp/finance-engine/finance"
	"github.com/warp/finance-engine/ledger"
	"github.com/warp/finance-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := finance.NewService(store.NewTxMemory())
	svc.TodayFunc = func() ledger.Date { return "2025-03-10" }
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(svc)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func createAccount(t *testing.T, srv *httptest.Server, id, typ string) api.AccountDTO {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/accounts", api.CreateAccountRequest{
		ID:     id,
		UserID: "user-1",
		Name:   id,
		Type:   typ,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var dto api.AccountDTO
	decodeBody(t, resp, &dto)
	return dto
}

func createTransaction(t *testing.T, srv *httptest.Server, req api.CreateTransactionRequest) api.TransactionDTO {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var dto api.TransactionDTO
	decodeBody(t, resp, &dto)
	return dto
}

func getAccount(t *testing.T, srv *httptest.Server, id string) api.AccountDTO {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/accounts/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dto api.AccountDTO
	decodeBody(t, resp, &dto)
	return dto
}

// =============================================================================
// ACCOUNT FLOWS
// =============================================================================

func TestAPI_CreateAndListAccounts(t *testing.T) {
	srv := newTestServer(t)

	created := createAccount(t, srv, "acc-1", "checking")
	assert.Equal(t, "acc-1", created.ID)
	assert.Equal(t, int64(0), created.Balance)

	resp, err := http.Get(srv.URL + "/api/accounts?user_id=user-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var accounts []api.AccountDTO
	decodeBody(t, resp, &accounts)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-1", accounts[0].ID)
}

func TestAPI_ListAccounts_MissingUserID_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/accounts")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetAccount_Missing_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/accounts/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// TRANSACTION FLOWS
// =============================================================================

func TestAPI_TransactionLifecycle_BalanceTracksLedger(t *testing.T) {
	// GIVEN: A checking account
	// WHEN: Income is inserted, edited, and deleted through the API
	// THEN: The account balance tracks every step exactly

	srv := newTestServer(t)
	createAccount(t, srv, "acc-1", "checking")

	txn := createTransaction(t, srv, api.CreateTransactionRequest{
		UserID:    "user-1",
		AccountID: "acc-1",
		Amount:    10000,
		Type:      "income",
		Paid:      true,
		Date:      "2025-03-01",
		Category:  "salary",
	})
	assert.Equal(t, int64(10000), getAccount(t, srv, "acc-1").Balance)

	// Edit the amount; balance moves by the net difference.
	newAmount := int64(15000)
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/transactions/"+txn.ID, api.UpdateTransactionRequest{
		Amount: &newAmount,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated api.TransactionDTO
	decodeBody(t, resp, &updated)
	assert.Equal(t, int64(15000), updated.Amount)
	assert.Equal(t, int64(15000), getAccount(t, srv, "acc-1").Balance)

	// Delete reverses the contribution.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/transactions/"+txn.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, int64(0), getAccount(t, srv, "acc-1").Balance)
}

func TestAPI_CreateTransaction_InvalidSign_BadRequest(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "acc-1", "checking")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", api.CreateTransactionRequest{
		UserID:    "user-1",
		AccountID: "acc-1",
		Amount:    -100, // income must be positive
		Type:      "income",
		Paid:      true,
		Date:      "2025-03-01",
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Overdraft_Unprocessable(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "acc-1", "checking")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", api.CreateTransactionRequest{
		UserID:    "user-1",
		AccountID: "acc-1",
		Amount:    -5000,
		Type:      "expense",
		Paid:      true,
		Date:      "2025-03-01",
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAPI_CreateInstallments_ReturnsAllIDs(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "card-1", "credit")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", api.CreateTransactionRequest{
		UserID:       "user-1",
		AccountID:    "card-1",
		Amount:       -10000,
		Type:         "expense",
		Paid:         true,
		Date:         "2025-01-15",
		Installments: 3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		IDs []string `json:"ids"`
	}
	decodeBody(t, resp, &body)
	assert.Len(t, body.IDs, 3)
	assert.Equal(t, int64(-10000), getAccount(t, srv, "card-1").Balance)
}

func TestAPI_ReconcileTransaction_Flow(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "acc-1", "checking")

	txn := createTransaction(t, srv, api.CreateTransactionRequest{
		UserID:    "user-1",
		AccountID: "acc-1",
		Amount:    10000,
		Type:      "income",
		Paid:      true,
		Date:      "2025-03-01",
	})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transactions/"+txn.ID+"/reconcile", api.ReconcileRequest{
		BankReference: "stmt-774",
		Date:          "2025-03-08",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The unreconciled view no longer lists it.
	listResp, err := http.Get(srv.URL + "/api/accounts/acc-1/unreconciled?from=2025-03-01&to=2025-03-31")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var unmatched []api.TransactionDTO
	decodeBody(t, listResp, &unmatched)
	assert.Empty(t, unmatched)

	// Balance untouched.
	assert.Equal(t, int64(10000), getAccount(t, srv, "acc-1").Balance)
}

// =============================================================================
// TRANSFER FLOWS
// =============================================================================

func TestAPI_Transfer_MovesMoney(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "acc-a", "checking")
	createAccount(t, srv, "acc-b", "savings")

	createTransaction(t, srv, api.CreateTransactionRequest{
		UserID:    "user-1",
		AccountID: "acc-a",
		Amount:    10000,
		Type:      "income",
		Paid:      true,
		Date:      "2025-03-01",
	})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transfers", api.CreateTransferRequest{
		UserID:      "user-1",
		FromAccount: "acc-a",
		ToAccount:   "acc-b",
		Amount:      4000,
		Date:        "2025-03-05",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body["transfer_group_id"])

	assert.Equal(t, int64(6000), getAccount(t, srv, "acc-a").Balance)
	assert.Equal(t, int64(4000), getAccount(t, srv, "acc-b").Balance)
}

// =============================================================================
// BILLING FLOWS
// =============================================================================

func TestAPI_BillingRun_OpensCycle(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/accounts", api.CreateAccountRequest{
		ID:       "card-1",
		UserID:   "user-1",
		Name:     "Visa",
		Type:     "credit",
		CloseDay: intPtr(5),
		DueDay:   intPtr(15),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	runResp := doJSON(t, http.MethodPost, srv.URL+"/api/billing/run", nil)
	require.Equal(t, http.StatusOK, runResp.StatusCode)
	var result api.MaintenanceResultDTO
	decodeBody(t, runResp, &result)
	assert.Equal(t, 1, result.CyclesOpened)

	cyclesResp, err := http.Get(srv.URL + "/api/accounts/card-1/cycles")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, cyclesResp.StatusCode)
	var cycles []api.CycleDTO
	decodeBody(t, cyclesResp, &cycles)
	require.Len(t, cycles, 1)
	assert.Equal(t, "open", cycles[0].Status)
	assert.Equal(t, "2025-04-05", cycles[0].ClosingDate)
}

func TestAPI_PayBill_MissingCycle_NotFound(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "acc-1", "checking")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/billing/cycles/ghost/pay", api.PayBillRequest{
		FromAccount: "acc-1",
		Amount:      100,
		Date:        "2025-04-10",
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// REPORT FLOWS
// =============================================================================

func TestAPI_AnalyticsReport(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "acc-1", "checking")

	createTransaction(t, srv, api.CreateTransactionRequest{
		UserID:    "user-1",
		AccountID: "acc-1",
		Amount:    10000,
		Type:      "income",
		Paid:      true,
		Date:      "2025-03-01",
		Category:  "salary",
	})
	createTransaction(t, srv, api.CreateTransactionRequest{
		UserID:    "user-1",
		AccountID: "acc-1",
		Amount:    -2500,
		Type:      "expense",
		Paid:      true,
		Date:      "2025-03-05",
		Category:  "groceries",
	})

	url := fmt.Sprintf("%s/api/reports/analytics?user_id=user-1&from=%s&to=%s",
		srv.URL, "2025-03-01", "2025-03-31")
	resp, err := http.Get(url)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report api.ReportDTO
	decodeBody(t, resp, &report)
	assert.Equal(t, int64(10000), report.Totals.Income)
	assert.Equal(t, int64(2500), report.Totals.Expenses)
	assert.Equal(t, int64(7500), report.Totals.Net)
	require.Len(t, report.Categories, 1)
	assert.Equal(t, "groceries", report.Categories[0].Category)
	assert.Equal(t, "100.00", report.Categories[0].Percent)
}

func TestAPI_AnalyticsReport_BadDates_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/reports/analytics?user_id=user-1&from=bogus&to=2025-03-31")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func intPtr(v int) *int { return &v }
