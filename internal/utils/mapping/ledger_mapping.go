package mapping

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	"github.com/SscSPs/ledger_engine/internal/models"
)

// ToModelTransaction converts a domain Transaction to its row. Entries are
// stored separately.
func ToModelTransaction(d domain.Transaction) (models.Transaction, error) {
	meta, err := marshalMetadata(d.Metadata)
	if err != nil {
		return models.Transaction{}, err
	}
	return models.Transaction{
		TransactionID: d.TransactionID,
		Description:   d.Description,
		EffectiveAt:   d.EffectiveAt,
		RecordedAt:    d.RecordedAt,
		PostedAt:      d.PostedAt,
		Metadata:      meta,
		CreatedBy:     d.CreatedBy,
	}, nil
}

// ToDomainTransaction converts a transaction row to a domain Transaction without entries.
func ToDomainTransaction(m models.Transaction) (domain.Transaction, error) {
	meta, err := unmarshalMetadata(m.Metadata)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", m.TransactionID, err)
	}
	return domain.Transaction{
		TransactionID: m.TransactionID,
		Description:   m.Description,
		EffectiveAt:   m.EffectiveAt.UTC(),
		RecordedAt:    m.RecordedAt.UTC(),
		PostedAt:      utcPtr(m.PostedAt),
		Metadata:      meta,
		CreatedBy:     m.CreatedBy,
	}, nil
}

// ToModelEntry converts a domain Entry to its row.
func ToModelEntry(d domain.Entry) (models.Entry, error) {
	meta, err := marshalMetadata(d.Metadata)
	if err != nil {
		return models.Entry{}, err
	}
	return models.Entry{
		EntryID:         d.EntryID,
		TransactionID:   d.TransactionID,
		AccountID:       d.AccountID,
		Amount:          d.Amount,
		Direction:       string(d.Direction),
		Description:     d.Description,
		EffectiveAt:     d.EffectiveAt,
		RecordedAt:      d.RecordedAt,
		ReversesEntryID: d.ReversesEntryID,
		Metadata:        meta,
		CurrencyCode:    d.CurrencyCode,
	}, nil
}

// ToDomainEntry converts an entry row to a domain Entry.
func ToDomainEntry(m models.Entry) (domain.Entry, error) {
	meta, err := unmarshalMetadata(m.Metadata)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("entry %s: %w", m.EntryID, err)
	}
	return domain.Entry{
		EntryID:         m.EntryID,
		TransactionID:   m.TransactionID,
		AccountID:       m.AccountID,
		Amount:          m.Amount,
		Direction:       domain.Direction(m.Direction),
		Description:     m.Description,
		EffectiveAt:     m.EffectiveAt.UTC(),
		RecordedAt:      m.RecordedAt.UTC(),
		ReversesEntryID: m.ReversesEntryID,
		Metadata:        meta,
		CurrencyCode:    m.CurrencyCode,
	}, nil
}

// ToModelAuditEvent converts an audit event to its row.
func ToModelAuditEvent(d domain.AuditEvent) (models.AuditEvent, error) {
	entries, err := json.Marshal(d.Entries)
	if err != nil {
		return models.AuditEvent{}, fmt.Errorf("failed to marshal audit entries: %w", err)
	}
	return models.AuditEvent{
		EventID:       d.EventID,
		Action:        d.Action,
		TransactionID: d.TransactionID,
		Entries:       entries,
		Actor:         d.Actor,
		Reason:        d.Reason,
		OccurredAt:    d.OccurredAt,
		Checksum:      d.Checksum,
	}, nil
}

func marshalMetadata(m domain.Metadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return b, nil
}

func unmarshalMetadata(b []byte) (domain.Metadata, error) {
	meta := domain.Metadata{}
	if len(b) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
