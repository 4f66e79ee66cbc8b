package domain

import "strings"

// AccountType classifies an account. The core treats it as an opaque label;
// the constants cover the usual chart-of-accounts classes.
type AccountType string

const (
	Asset     AccountType = "asset"
	Liability AccountType = "liability"
	Equity    AccountType = "equity"
	Revenue   AccountType = "revenue"
	Expense   AccountType = "expense"
)

// OwnerRef points at the domain entity that owns an account. It is never
// dereferenced by the ledger, only stored and filtered on.
type OwnerRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (o OwnerRef) IsZero() bool {
	return strings.TrimSpace(o.Type) == "" || strings.TrimSpace(o.ID) == ""
}

func (o OwnerRef) String() string {
	return o.Type + ":" + o.ID
}

// Account is a named bucket of value scoped to an owner and a currency.
// It carries no balance; balances are always derived from posted entries.
type Account struct {
	AccountID     string      `json:"accountID"`
	Owner         OwnerRef    `json:"owner"`
	AccountNumber string      `json:"accountNumber,omitempty"`
	AccountType   AccountType `json:"accountType"`
	CurrencyCode  string      `json:"currencyCode"`
	Name          string      `json:"name"`
	IsActive      bool        `json:"isActive"`
	AuditFields
}

// AccountFilter narrows FindAccounts. Nil/empty fields do not filter.
type AccountFilter struct {
	Owner        *OwnerRef
	AccountType  AccountType
	CurrencyCode string
	IsActive     *bool
	Limit        int
	Offset       int
}

// NormalizeCurrency upper-cases and trims an ISO 4217 code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
