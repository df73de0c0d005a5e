/*
handlers.go - HTTP API handlers for the finance engine

PURPOSE:
  Exposes the ledger, billing, and reporting operations via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  the finance service.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                    List accounts for a user
    POST   /api/accounts                    Create account
    GET    /api/accounts/{id}               Get account
    DELETE /api/accounts/{id}               Delete account (cascades)
    GET    /api/accounts/{id}/transactions  Transactions in range
    GET    /api/accounts/{id}/unreconciled  Settled entries without a bank mark
    GET    /api/accounts/{id}/cycles        Billing cycles

  Transactions:
    POST   /api/transactions                Insert (or split into installments)
    GET    /api/transactions/{id}           Get entry
    PUT    /api/transactions/{id}           Partial edit
    DELETE /api/transactions/{id}           Delete (reverses balance effect)
    POST   /api/transactions/{id}/reconcile Tag with bank reference

  Transfers:
    POST   /api/transfers                   Two-leg transfer between accounts

  Billing:
    POST   /api/billing/run                 Trigger a maintenance pass now
    POST   /api/billing/cycles/{id}/pay     Pay against a cycle

  Reports:
    GET    /api/reports/analytics           Totals, categories, monthly series

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Account/entry/cycle not found
  - 409: Duplicate (cycle already exists)
  - 422: Insufficient funds
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. The user_id query/body field is
  trusted as given. Single-household deployment only.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/finance-engine/finance"
	"github.com/warp/finance-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *finance.Service
}

// NewHandler creates a new handler over the finance service.
func NewHandler(svc *finance.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns a user's accounts.
// GET /api/accounts?user_id=...
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	accounts, err := h.Service.ListAccounts(r.Context(), ledger.UserID(userID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates an account. The initial balance is always zero.
// POST /api/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Service.CreateAccount(r.Context(), ledger.Account{
		ID:          ledger.AccountID(req.ID),
		UserID:      ledger.UserID(req.UserID),
		Name:        req.Name,
		Type:        ledger.AccountType(req.Type),
		CreditLimit: req.CreditLimit,
		CloseDay:    req.CloseDay,
		DueDay:      req.DueDay,
	})
	if err != nil {
		writeServiceError(w, "Failed to create account", err)
		return
	}

	acct, err := h.Service.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load created account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(*acct))
}

// GetAccount returns a single account.
// GET /api/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	acct, err := h.Service.GetAccount(r.Context(), ledger.AccountID(id))
	if err != nil {
		writeServiceError(w, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*acct))
}

// DeleteAccount deletes an account and everything referencing it.
// DELETE /api/accounts/{id}
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Service.DeleteAccount(r.Context(), ledger.AccountID(id)); err != nil {
		writeServiceError(w, "Failed to delete account", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetAccountTransactions returns the account's entries in a date range.
// GET /api/accounts/{id}/transactions?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	entries, err := h.Service.TransactionsByAccount(r.Context(), ledger.AccountID(id), from, to)
	if err != nil {
		writeServiceError(w, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(entries))
}

// GetUnreconciled returns settled entries on the account that have no bank
// mark yet.
// GET /api/accounts/{id}/unreconciled?from=...&to=...
func (h *Handler) GetUnreconciled(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	entries, err := h.Service.UnreconciledTransactions(r.Context(), ledger.AccountID(id), from, to)
	if err != nil {
		writeServiceError(w, "Failed to list unreconciled transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(entries))
}

// GetAccountCycles returns the account's billing cycles, oldest first.
// GET /api/accounts/{id}/cycles
func (h *Handler) GetAccountCycles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cycles, err := h.Service.CyclesByAccount(r.Context(), ledger.AccountID(id))
	if err != nil {
		writeServiceError(w, "Failed to list billing cycles", err)
		return
	}

	dtos := make([]CycleDTO, len(cycles))
	for i, c := range cycles {
		dtos[i] = toCycleDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction inserts a ledger entry. With installments >= 2 the
// amount is split into linked monthly entries instead.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry := ledger.Entry{
		UserID:           ledger.UserID(req.UserID),
		AccountID:        ledger.AccountID(req.AccountID),
		Amount:           req.Amount,
		Type:             ledger.EntryType(req.Type),
		Paid:             req.Paid,
		Date:             ledger.Date(req.Date),
		Category:         ledger.CategoryID(req.Category),
		Description:      req.Description,
		IncludeInReports: true,
	}
	if req.IncludeInReports != nil {
		entry.IncludeInReports = *req.IncludeInReports
	}
	if req.CounterAccountID != nil {
		counter := ledger.AccountID(*req.CounterAccountID)
		entry.CounterAccountID = &counter
	}

	if req.Installments >= 2 {
		ids, err := h.Service.CreateInstallments(r.Context(), entry, req.Installments)
		if err != nil {
			writeServiceError(w, "Failed to create installments", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ids": ids})
		return
	}

	id, err := h.Service.InsertTransaction(r.Context(), entry)
	if err != nil {
		writeServiceError(w, "Failed to create transaction", err)
		return
	}

	created, err := h.Service.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load created transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*created))
}

// GetTransaction returns a single entry.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.Service.GetTransaction(r.Context(), ledger.EntryID(id))
	if err != nil {
		writeServiceError(w, "Failed to get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*entry))
}

// UpdateTransaction applies a partial edit. The balance moves by exactly
// the net difference between the old and new versions.
// PUT /api/transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := finance.EntryPatch{
		Amount:           req.Amount,
		Paid:             req.Paid,
		Description:      req.Description,
		IncludeInReports: req.IncludeInReports,
	}
	if req.AccountID != nil {
		acct := ledger.AccountID(*req.AccountID)
		patch.AccountID = &acct
	}
	if req.Type != nil {
		typ := ledger.EntryType(*req.Type)
		patch.Type = &typ
	}
	if req.Date != nil {
		d := ledger.Date(*req.Date)
		patch.Date = &d
	}
	if req.Category != nil {
		cat := ledger.CategoryID(*req.Category)
		patch.Category = &cat
	}

	if err := h.Service.UpdateTransaction(r.Context(), ledger.EntryID(id), patch); err != nil {
		writeServiceError(w, "Failed to update transaction", err)
		return
	}

	updated, err := h.Service.GetTransaction(r.Context(), ledger.EntryID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load updated transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*updated))
}

// DeleteTransaction removes an entry, reversing its balance contribution.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Service.DeleteTransaction(r.Context(), ledger.EntryID(id)); err != nil {
		writeServiceError(w, "Failed to delete transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ReconcileTransaction tags an entry with a bank reference.
// POST /api/transactions/{id}/reconcile
func (h *Handler) ReconcileTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Service.ReconcileTransaction(r.Context(), ledger.EntryID(id), req.BankReference, ledger.Date(req.Date))
	if err != nil {
		writeServiceError(w, "Failed to reconcile transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reconciled"})
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

// CreateTransfer moves money between two accounts as a linked pair of legs.
// POST /api/transfers
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	groupID, err := h.Service.CreateTransfer(
		r.Context(),
		ledger.UserID(req.UserID),
		ledger.AccountID(req.FromAccount),
		ledger.AccountID(req.ToAccount),
		req.Amount,
		ledger.Date(req.Date),
	)
	if err != nil {
		writeServiceError(w, "Failed to create transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"transfer_group_id": groupID})
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// RunBilling triggers a billing maintenance pass immediately.
// POST /api/billing/run
func (h *Handler) RunBilling(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.RunBillingCycleMaintenance(r.Context())
	if err != nil {
		writeServiceError(w, "Billing maintenance failed", err)
		return
	}
	writeJSON(w, http.StatusOK, MaintenanceResultDTO{
		AccountsSeen:  summary.AccountsSeen,
		CyclesClosed:  summary.CyclesClosed,
		CyclesOpened:  summary.CyclesOpened,
		SkippedConfig: summary.SkippedConfig,
	})
}

// PayBill pays against a billing cycle.
// POST /api/billing/cycles/{id}/pay
func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PayBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Service.PayBill(r.Context(), ledger.CycleID(id), ledger.AccountID(req.FromAccount), req.Amount, ledger.Date(req.Date))
	if err != nil {
		writeServiceError(w, "Failed to pay bill", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetAnalyticsReport returns totals, category breakdown, and the monthly
// series for a user and inclusive date range.
// GET /api/reports/analytics?user_id=...&from=...&to=...
func (h *Handler) GetAnalyticsReport(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	report, err := h.Service.GetAnalyticsReport(r.Context(), ledger.UserID(userID), from, to)
	if err != nil {
		writeServiceError(w, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// =============================================================================
// HELPERS
// =============================================================================

// dateRange parses the from/to query parameters. On failure it writes a
// 400 response and returns ok=false.
func dateRange(w http.ResponseWriter, r *http.Request) (from, to ledger.Date, ok bool) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	fromDate, err := ledger.ParseDate(fromStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return "", "", false
	}
	toDate, err := ledger.ParseDate(toStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return "", "", false
	}
	return fromDate, toDate, true
}

// writeServiceError maps domain errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	var insufficientFunds *ledger.InsufficientFundsError

	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.As(err, &insufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case ledger.IsDuplicate(err):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
