package dto

import (
	"time"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	"github.com/shopspring/decimal"
)

// OpenTransactionRequest opens a draft transaction. EffectiveAt defaults to now.
type OpenTransactionRequest struct {
	Description string          `json:"description" binding:"max=1000"`
	EffectiveAt *time.Time      `json:"effectiveAt"`
	Metadata    domain.Metadata `json:"metadata"`
}

// UpdateTransactionRequest changes a draft transaction.
type UpdateTransactionRequest struct {
	Description *string         `json:"description" binding:"omitempty,max=1000"`
	EffectiveAt *time.Time      `json:"effectiveAt"`
	Metadata    domain.Metadata `json:"metadata"`
}

// AddEntryRequest attaches one leg to a draft transaction.
type AddEntryRequest struct {
	AccountID   string          `json:"accountID" binding:"required,uuid"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"100.00"`
	Direction   string          `json:"direction" binding:"required,oneof=debit credit"`
	Description string          `json:"description" binding:"max=500"`
	Metadata    domain.Metadata `json:"metadata"`
}

// UpdateEntryRequest changes a draft entry.
type UpdateEntryRequest struct {
	AccountID   *string          `json:"accountID" binding:"omitempty,uuid"`
	Amount      *decimal.Decimal `json:"amount" swaggertype:"string"`
	Direction   *string          `json:"direction" binding:"omitempty,oneof=debit credit"`
	Description *string          `json:"description" binding:"omitempty,max=500"`
}

// RecordTransactionRequest opens, fills and posts a transaction in one call.
type RecordTransactionRequest struct {
	Description string            `json:"description" binding:"max=1000"`
	EffectiveAt *time.Time        `json:"effectiveAt"`
	Metadata    domain.Metadata   `json:"metadata"`
	Entries     []AddEntryRequest `json:"entries" binding:"required,min=1,dive"`
}

// ReverseRequest carries the reason for a reversal.
type ReverseRequest struct {
	Reason      string     `json:"reason" binding:"required,max=500"`
	EffectiveAt *time.Time `json:"effectiveAt"`
}

// EntryResponse defines the data returned for an entry.
type EntryResponse struct {
	EntryID         string          `json:"entryID"`
	TransactionID   string          `json:"transactionID"`
	AccountID       string          `json:"accountID"`
	Amount          decimal.Decimal `json:"amount" swaggertype:"string"`
	Direction       string          `json:"direction"`
	CurrencyCode    string          `json:"currencyCode,omitempty"`
	Description     string          `json:"description,omitempty"`
	EffectiveAt     time.Time       `json:"effectiveAt"`
	RecordedAt      time.Time       `json:"recordedAt"`
	ReversesEntryID *string         `json:"reversesEntryID,omitempty"`
	Metadata        domain.Metadata `json:"metadata,omitempty"`
}

// TransactionResponse defines the data returned for a transaction.
type TransactionResponse struct {
	TransactionID string          `json:"transactionID"`
	Description   string          `json:"description"`
	EffectiveAt   time.Time       `json:"effectiveAt"`
	RecordedAt    time.Time       `json:"recordedAt"`
	PostedAt      *time.Time      `json:"postedAt,omitempty"`
	Status        string          `json:"status"`
	Metadata      domain.Metadata `json:"metadata"`
	CreatedBy     string          `json:"createdBy,omitempty"`
	Entries       []EntryResponse `json:"entries"`
}

// BalanceResponse defines the data returned for a balance query.
type BalanceResponse struct {
	AccountID    string          `json:"accountID"`
	CurrencyCode string          `json:"currencyCode"`
	Balance      decimal.Decimal `json:"balance" swaggertype:"string"`
	AsOf         *time.Time      `json:"asOf,omitempty"`
	RecordedAsOf *time.Time      `json:"recordedAsOf,omitempty"`
}

// ToEntryResponse converts a domain.Entry to EntryResponse DTO.
func ToEntryResponse(e *domain.Entry) EntryResponse {
	return EntryResponse{
		EntryID:         e.EntryID,
		TransactionID:   e.TransactionID,
		AccountID:       e.AccountID,
		Amount:          e.Amount,
		Direction:       string(e.Direction),
		CurrencyCode:    e.CurrencyCode,
		Description:     e.Description,
		EffectiveAt:     e.EffectiveAt,
		RecordedAt:      e.RecordedAt,
		ReversesEntryID: e.ReversesEntryID,
		Metadata:        e.Metadata,
	}
}

// ToEntryResponses converts a slice of domain.Entry to []EntryResponse.
func ToEntryResponses(entries []domain.Entry) []EntryResponse {
	responses := make([]EntryResponse, len(entries))
	for i := range entries {
		responses[i] = ToEntryResponse(&entries[i])
	}
	return responses
}

// ToTransactionResponse converts a domain.Transaction, with its entries, to the response DTO.
func ToTransactionResponse(t *domain.Transaction) TransactionResponse {
	status := "draft"
	if t.IsPosted() {
		status = "posted"
	}
	return TransactionResponse{
		TransactionID: t.TransactionID,
		Description:   t.Description,
		EffectiveAt:   t.EffectiveAt,
		RecordedAt:    t.RecordedAt,
		PostedAt:      t.PostedAt,
		Status:        status,
		Metadata:      t.Metadata,
		CreatedBy:     t.CreatedBy,
		Entries:       ToEntryResponses(t.Entries),
	}
}

// ToBalanceResponse converts a domain.AccountBalance to BalanceResponse DTO.
func ToBalanceResponse(b *domain.AccountBalance) BalanceResponse {
	return BalanceResponse{
		AccountID:    b.AccountID,
		CurrencyCode: b.CurrencyCode,
		Balance:      b.Balance,
		AsOf:         b.AsOf,
		RecordedAsOf: b.RecordedAsOf,
	}
}
