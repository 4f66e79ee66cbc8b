package models

// Account is a row of ledger_accounts.
type Account struct {
	AccountID     string `db:"account_id"`
	OwnerType     string `db:"owner_type"`
	OwnerID       string `db:"owner_id"`
	AccountNumber string `db:"account_number"` // Nullable
	AccountType   string `db:"account_type"`
	CurrencyCode  string `db:"currency_code"`
	Name          string `db:"name"`
	IsActive      bool   `db:"is_active"`
	AuditFields
}
