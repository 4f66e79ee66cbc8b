package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/ledger_engine/internal/core/ports/services"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// auditService turns committed posts and reversals into audit events.
// Emit runs after commit, so a writer failure is logged and counted but
// never reported to the caller.
type auditService struct {
	BaseService
	writer portsrepo.AuditEventWriter
}

// NewAuditService creates the audit emitter on top of a writer.
func NewAuditService(writer portsrepo.AuditEventWriter, opts ...func(*BaseService)) portssvc.AuditSvc {
	svc := &auditService{writer: writer}
	for _, o := range opts {
		o(&svc.BaseService)
	}
	return svc
}

var _ portssvc.AuditSvc = (*auditService)(nil)

func (s *auditService) Emit(ctx context.Context, action string, txn domain.Transaction, actor string, reason string) {
	event := BuildAuditEvent(action, txn, actor, reason, s.now())
	checksum, err := ComputeAuditChecksum(event)
	if err != nil {
		s.LogError(ctx, err, "Failed to checksum audit event", slog.String("transaction_id", txn.TransactionID))
		s.metrics.ObserveAuditFailure(action)
		return
	}
	event.Checksum = checksum

	// The request may be cancelled once the response is written.
	if err := s.writer.WriteAuditEvent(context.WithoutCancel(ctx), event); err != nil {
		s.LogError(ctx, err, "Failed to write audit event",
			slog.String("event_id", event.EventID),
			slog.String("action", action),
			slog.String("transaction_id", txn.TransactionID))
		s.metrics.ObserveAuditFailure(action)
		return
	}
	s.LogDebug(ctx, "Audit event written", slog.String("event_id", event.EventID), slog.String("action", action))
}

// BuildAuditEvent assembles the event payload without its checksum.
func BuildAuditEvent(action string, txn domain.Transaction, actor string, reason string, occurredAt time.Time) domain.AuditEvent {
	entries := make([]domain.AuditEntry, len(txn.Entries))
	for i, e := range txn.Entries {
		entries[i] = domain.AuditEntry{
			EntryID:   e.EntryID,
			AccountID: e.AccountID,
			Amount:    e.Amount,
			Direction: e.Direction,
		}
	}
	return domain.AuditEvent{
		EventID:       uuid.NewString(),
		Action:        action,
		TransactionID: txn.TransactionID,
		Entries:       entries,
		Actor:         actor,
		Reason:        reason,
		OccurredAt:    occurredAt,
	}
}

// ComputeAuditChecksum returns the hex BLAKE2b-256 digest of the event's
// JSON form with the Checksum field cleared.
func ComputeAuditChecksum(event domain.AuditEvent) (string, error) {
	event.Checksum = ""
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit event: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyAuditChecksum reports whether event.Checksum matches its payload.
func VerifyAuditChecksum(event domain.AuditEvent) bool {
	want, err := ComputeAuditChecksum(event)
	return err == nil && want == event.Checksum
}
