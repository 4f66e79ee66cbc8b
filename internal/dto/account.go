package dto

import (
	"time"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
)

// CreateAccountRequest defines the data needed to create a new account.
type CreateAccountRequest struct {
	OwnerType     string             `json:"ownerType" binding:"required,max=100"`
	OwnerID       string             `json:"ownerID" binding:"required,max=255"`
	AccountType   domain.AccountType `json:"accountType" binding:"required,max=50"`
	CurrencyCode  string             `json:"currencyCode" binding:"required,alpha,len=3"`
	Name          string             `json:"name" binding:"max=255"`
	AccountNumber string             `json:"accountNumber" binding:"max=20"`
}

// UpdateAccountRequest defines the data allowed for updating an account.
// Use pointers to distinguish between zero-value updates and fields not provided.
type UpdateAccountRequest struct {
	Name          *string `json:"name" binding:"omitempty,max=255"`
	AccountNumber *string `json:"accountNumber" binding:"omitempty,max=20"`
	CurrencyCode  *string `json:"currencyCode" binding:"omitempty,alpha,len=3"`
	IsActive      *bool   `json:"isActive"`
}

// ListAccountsParams defines query parameters for listing accounts.
type ListAccountsParams struct {
	OwnerType    string `form:"ownerType"`
	OwnerID      string `form:"ownerID"`
	AccountType  string `form:"accountType"`
	CurrencyCode string `form:"currencyCode"`
	IsActive     *bool  `form:"isActive"`
	Limit        int    `form:"limit,default=50" binding:"min=1,max=500"`
	Offset       int    `form:"offset,default=0" binding:"min=0"`
}

// ToFilter converts the query parameters to a domain filter.
// Owner filtering needs both parts of the pair.
func (p ListAccountsParams) ToFilter() domain.AccountFilter {
	f := domain.AccountFilter{
		AccountType:  domain.AccountType(p.AccountType),
		CurrencyCode: domain.NormalizeCurrency(p.CurrencyCode),
		IsActive:     p.IsActive,
		Limit:        p.Limit,
		Offset:       p.Offset,
	}
	if p.OwnerType != "" && p.OwnerID != "" {
		f.Owner = &domain.OwnerRef{Type: p.OwnerType, ID: p.OwnerID}
	}
	return f
}

// AccountResponse defines the data returned for an account.
type AccountResponse struct {
	AccountID     string             `json:"accountID"`
	OwnerType     string             `json:"ownerType"`
	OwnerID       string             `json:"ownerID"`
	AccountNumber string             `json:"accountNumber,omitempty"`
	AccountType   domain.AccountType `json:"accountType"`
	CurrencyCode  string             `json:"currencyCode"`
	Name          string             `json:"name"`
	IsActive      bool               `json:"isActive"`
	CreatedAt     time.Time          `json:"createdAt"`
	CreatedBy     string             `json:"createdBy,omitempty"`
	LastUpdatedAt time.Time          `json:"lastUpdatedAt"`
	LastUpdatedBy string             `json:"lastUpdatedBy,omitempty"`
}

// ToAccountResponse converts a domain.Account to AccountResponse DTO
func ToAccountResponse(acc *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:     acc.AccountID,
		OwnerType:     acc.Owner.Type,
		OwnerID:       acc.Owner.ID,
		AccountNumber: acc.AccountNumber,
		AccountType:   acc.AccountType,
		CurrencyCode:  acc.CurrencyCode,
		Name:          acc.Name,
		IsActive:      acc.IsActive,
		CreatedAt:     acc.CreatedAt,
		CreatedBy:     acc.CreatedBy,
		LastUpdatedAt: acc.LastUpdatedAt,
		LastUpdatedBy: acc.LastUpdatedBy,
	}
}

// ToListAccountResponse converts a slice of domain.Account to a slice of AccountResponse DTOs
func ToListAccountResponse(accounts []domain.Account) []AccountResponse {
	res := make([]AccountResponse, len(accounts))
	for i := range accounts {
		res[i] = ToAccountResponse(&accounts[i])
	}
	return res
}

// BalanceParams defines query parameters for a balance lookup.
type BalanceParams struct {
	AsOf         *time.Time `form:"asOf" time_format:"2006-01-02T15:04:05Z07:00"`
	RecordedAsOf *time.Time `form:"recordedAsOf" time_format:"2006-01-02T15:04:05Z07:00"`
}

// HistoryParams defines query parameters for account history.
type HistoryParams struct {
	Start     *time.Time `form:"start" time_format:"2006-01-02T15:04:05Z07:00"`
	End       *time.Time `form:"end" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit     int        `form:"limit,default=50" binding:"min=1,max=500"`
	NextToken string     `form:"nextToken"`
}

// HistoryResponse is one page of posted entries.
type HistoryResponse struct {
	AccountID string          `json:"accountID"`
	Entries   []EntryResponse `json:"entries"`
	NextToken *string         `json:"nextToken,omitempty"`
}
