// Package logsink writes audit events to a structured logger. It is the
// default sink when no durable store is configured.
package logsink

import (
	"context"
	"log/slog"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
)

// AuditWriter logs each event as one record at info level.
type AuditWriter struct {
	logger *slog.Logger
}

// NewAuditWriter logs to logger, or slog.Default() when nil.
func NewAuditWriter(logger *slog.Logger) *AuditWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditWriter{logger: logger.With(slog.String("component", "audit"))}
}

var _ portsrepo.AuditEventWriter = (*AuditWriter)(nil)

func (w *AuditWriter) WriteAuditEvent(ctx context.Context, event domain.AuditEvent) error {
	legs := make([]map[string]string, 0, len(event.Entries))
	for _, e := range event.Entries {
		legs = append(legs, map[string]string{
			"entry_id":   e.EntryID,
			"account_id": e.AccountID,
			"amount":     e.Amount.String(),
			"direction":  string(e.Direction),
		})
	}
	w.logger.InfoContext(ctx, "Audit event",
		slog.String("event_id", event.EventID),
		slog.String("action", event.Action),
		slog.String("transaction_id", event.TransactionID),
		slog.String("actor", event.Actor),
		slog.String("reason", event.Reason),
		slog.Time("occurred_at", event.OccurredAt),
		slog.String("checksum", event.Checksum),
		slog.Any("entries", legs),
	)
	return nil
}
