/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Every money field is integer cents, end to end. Clients format for
  display; the API never emits floats for money.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/finance-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Balance     int64  `json:"balance"` // cents
	CreditLimit *int64 `json:"credit_limit,omitempty"`
	CloseDay    *int   `json:"close_day,omitempty"`
	DueDay      *int   `json:"due_day,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	ID          string `json:"id,omitempty"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	CreditLimit *int64 `json:"credit_limit,omitempty"`
	CloseDay    *int   `json:"close_day,omitempty"`
	DueDay      *int   `json:"due_day,omitempty"`
}

// TransactionDTO represents a ledger entry.
type TransactionDTO struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	AccountID        string  `json:"account_id"`
	CounterAccountID *string `json:"counter_account_id,omitempty"`
	Amount           int64   `json:"amount"` // signed cents
	Type             string  `json:"type"`
	Paid             bool    `json:"paid"`
	Date             string  `json:"date"`
	Category         string  `json:"category,omitempty"`
	Description      string  `json:"description,omitempty"`
	IncludeInReports bool    `json:"include_in_reports"`
	TransferGroupID  string  `json:"transfer_group_id,omitempty"`
	InstallmentSeq   int     `json:"installment_seq,omitempty"`
	InstallmentTotal int     `json:"installment_total,omitempty"`
	Reconciled       bool    `json:"reconciled"`
	BankReference    string  `json:"bank_reference,omitempty"`
	ReconciledAt     string  `json:"reconciled_at,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

// CreateTransactionRequest is the request to insert a ledger entry.
type CreateTransactionRequest struct {
	UserID           string  `json:"user_id"`
	AccountID        string  `json:"account_id"`
	CounterAccountID *string `json:"counter_account_id,omitempty"`
	Amount           int64   `json:"amount"`
	Type             string  `json:"type"`
	Paid             bool    `json:"paid"`
	Date             string  `json:"date"`
	Category         string  `json:"category,omitempty"`
	Description      string  `json:"description,omitempty"`
	IncludeInReports *bool   `json:"include_in_reports,omitempty"` // default true
	Installments     int     `json:"installments,omitempty"`       // >= 2 splits the amount
}

// UpdateTransactionRequest is a partial edit; absent fields are unchanged.
type UpdateTransactionRequest struct {
	AccountID        *string `json:"account_id,omitempty"`
	Amount           *int64  `json:"amount,omitempty"`
	Type             *string `json:"type,omitempty"`
	Paid             *bool   `json:"paid,omitempty"`
	Date             *string `json:"date,omitempty"`
	Category         *string `json:"category,omitempty"`
	Description      *string `json:"description,omitempty"`
	IncludeInReports *bool   `json:"include_in_reports,omitempty"`
}

// CreateTransferRequest is the request for the composite transfer operation.
type CreateTransferRequest struct {
	UserID      string `json:"user_id"`
	FromAccount string `json:"from_account"`
	ToAccount   string `json:"to_account"`
	Amount      int64  `json:"amount"` // positive cents
	Date        string `json:"date"`
}

// ReconcileRequest tags an entry with a bank reference.
type ReconcileRequest struct {
	BankReference string `json:"bank_reference"`
	Date          string `json:"date"`
}

// CycleDTO represents a billing cycle.
type CycleDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	AccountID   string `json:"account_id"`
	Status      string `json:"status"`
	StartDate   string `json:"start_date"`
	ClosingDate string `json:"closing_date"`
	DueDate     string `json:"due_date"`
	TotalAmount int64  `json:"total_amount"`
	AmountPaid  int64  `json:"amount_paid"`
}

// PayBillRequest pays against a billing cycle.
type PayBillRequest struct {
	FromAccount string `json:"from_account"`
	Amount      int64  `json:"amount"`
	Date        string `json:"date"`
}

// ReportDTO is the analytics response.
type ReportDTO struct {
	From       string               `json:"from"`
	To         string               `json:"to"`
	Totals     ReportTotalsDTO      `json:"totals"`
	Categories []CategorySummaryDTO `json:"categories"`
	Monthly    []MonthlyBucketDTO   `json:"monthly"`
}

type ReportTotalsDTO struct {
	Income   int64 `json:"income"`
	Expenses int64 `json:"expenses"`
	Net      int64 `json:"net"`
}

type CategorySummaryDTO struct {
	Category string `json:"category"`
	Total    int64  `json:"total"`
	Percent  string `json:"percent"` // decimal string, 2 places
}

type MonthlyBucketDTO struct {
	Month    string `json:"month"`
	Income   int64  `json:"income"`
	Expenses int64  `json:"expenses"`
	Net      int64  `json:"net"`
}

// MaintenanceResultDTO reports a billing maintenance pass.
type MaintenanceResultDTO struct {
	AccountsSeen  int `json:"accounts_seen"`
	CyclesClosed  int `json:"cycles_closed"`
	CyclesOpened  int `json:"cycles_opened"`
	SkippedConfig int `json:"skipped_config"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:          string(a.ID),
		UserID:      string(a.UserID),
		Name:        a.Name,
		Type:        string(a.Type),
		Balance:     a.Balance,
		CreditLimit: a.CreditLimit,
		CloseDay:    a.CloseDay,
		DueDay:      a.DueDay,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(e ledger.Entry) TransactionDTO {
	dto := TransactionDTO{
		ID:               string(e.ID),
		UserID:           string(e.UserID),
		AccountID:        string(e.AccountID),
		Amount:           e.Amount,
		Type:             string(e.Type),
		Paid:             e.Paid,
		Date:             string(e.Date),
		Category:         string(e.Category),
		Description:      e.Description,
		IncludeInReports: e.IncludeInReports,
		TransferGroupID:  e.TransferGroupID,
		InstallmentSeq:   e.InstallmentSeq,
		InstallmentTotal: e.InstallmentTotal,
		Reconciled:       e.Reconciled,
		BankReference:    e.BankReference,
		CreatedAt:        e.CreatedAt.Format(time.RFC3339),
	}
	if e.CounterAccountID != nil {
		s := string(*e.CounterAccountID)
		dto.CounterAccountID = &s
	}
	if e.ReconciledAt != nil {
		dto.ReconciledAt = e.ReconciledAt.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTOs(entries []ledger.Entry) []TransactionDTO {
	dtos := make([]TransactionDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toTransactionDTO(e)
	}
	return dtos
}

func toCycleDTO(c ledger.Cycle) CycleDTO {
	return CycleDTO{
		ID:          string(c.ID),
		UserID:      string(c.UserID),
		AccountID:   string(c.AccountID),
		Status:      string(c.Status),
		StartDate:   string(c.StartDate),
		ClosingDate: string(c.ClosingDate),
		DueDate:     string(c.DueDate),
		TotalAmount: c.TotalAmount,
		AmountPaid:  c.AmountPaid,
	}
}

func toReportDTO(r ledger.Report) ReportDTO {
	dto := ReportDTO{
		From: string(r.From),
		To:   string(r.To),
		Totals: ReportTotalsDTO{
			Income:   r.Totals.Income,
			Expenses: r.Totals.Expenses,
			Net:      r.Totals.Net,
		},
		Categories: make([]CategorySummaryDTO, len(r.Categories)),
		Monthly:    make([]MonthlyBucketDTO, len(r.Monthly)),
	}
	for i, c := range r.Categories {
		dto.Categories[i] = CategorySummaryDTO{
			Category: string(c.Category),
			Total:    c.Total,
			Percent:  c.Percent.StringFixed(2),
		}
	}
	for i, m := range r.Monthly {
		dto.Monthly[i] = MonthlyBucketDTO{
			Month:    m.Month,
			Income:   m.Income,
			Expenses: m.Expenses,
			Net:      m.Net,
		}
	}
	return dto
}
