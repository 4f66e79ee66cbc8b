package domain

import "time"

// Transaction is one atomic financial event. It is a draft until PostedAt
// is set, after which it and its entries are permanently immutable.
type Transaction struct {
	TransactionID string     `json:"transactionID"`
	Description   string     `json:"description"`
	EffectiveAt   time.Time  `json:"effectiveAt"`
	RecordedAt    time.Time  `json:"recordedAt"`
	PostedAt      *time.Time `json:"postedAt,omitempty"`
	Metadata      Metadata   `json:"metadata"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	Entries       []Entry    `json:"entries,omitempty"`
}

func (t Transaction) IsPosted() bool {
	return t.PostedAt != nil
}

// IsReversal reports whether the transaction was generated by the reversal path.
func (t Transaction) IsReversal() bool {
	kind, _ := t.Metadata[MetaKind].(string)
	return kind == KindReversal
}

// Metadata keys written by the reversal path.
const (
	MetaKind                = "kind"
	MetaReason              = "reason"
	MetaReversesEntryID     = "reverses_entry_id"
	MetaReversesTransaction = "reverses_transaction_id"
	KindReversal            = "reversal"
)
