package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audit actions emitted by the ledger.
const (
	AuditActionPosted   = "ledger.transaction.posted"
	AuditActionReversed = "ledger.entry.reversed"
)

// AuditEntry is the per-leg payload of an audit event.
type AuditEntry struct {
	EntryID   string          `json:"entryID"`
	AccountID string          `json:"accountID"`
	Amount    decimal.Decimal `json:"amount"`
	Direction Direction       `json:"direction"`
}

// AuditEvent describes one successful post or reversal. The core defines the
// shape only; storage belongs to whichever writer is configured.
type AuditEvent struct {
	EventID       string       `json:"eventID"`
	Action        string       `json:"action"`
	TransactionID string       `json:"transactionID"`
	Entries       []AuditEntry `json:"entries"`
	Actor         string       `json:"actor,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	OccurredAt    time.Time    `json:"occurredAt"`
	Checksum      string       `json:"checksum"`
}
