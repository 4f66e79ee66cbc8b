package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a row of ledger_transactions. Metadata is stored as JSONB.
type Transaction struct {
	TransactionID string     `db:"transaction_id"`
	Description   string     `db:"description"`
	EffectiveAt   time.Time  `db:"effective_at"`
	RecordedAt    time.Time  `db:"recorded_at"`
	PostedAt      *time.Time `db:"posted_at"`
	Metadata      []byte     `db:"metadata"`
	CreatedBy     string     `db:"created_by"`
}

// Entry is a row of ledger_entries. CurrencyCode comes from the joined
// account and is not a column of the table.
type Entry struct {
	EntryID         string          `db:"entry_id"`
	TransactionID   string          `db:"transaction_id"`
	AccountID       string          `db:"account_id"`
	Amount          decimal.Decimal `db:"amount"`
	Direction       string          `db:"direction"`
	Description     string          `db:"description"`
	EffectiveAt     time.Time       `db:"effective_at"`
	RecordedAt      time.Time       `db:"recorded_at"`
	ReversesEntryID *string         `db:"reverses_entry_id"`
	Metadata        []byte          `db:"metadata"`
	CurrencyCode    string          `db:"currency_code"`
}

// AuditEvent is a row of ledger_audit_events. Entries is the JSON array of legs.
type AuditEvent struct {
	EventID       string    `db:"event_id"`
	Action        string    `db:"action"`
	TransactionID string    `db:"transaction_id"`
	Entries       []byte    `db:"entries"`
	Actor         string    `db:"actor"`
	Reason        string    `db:"reason"`
	OccurredAt    time.Time `db:"occurred_at"`
	Checksum      string    `db:"checksum"`
}
