package repositories

import (
	"context"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
)

// AuditEventWriter persists or forwards audit events. Implementations must be
// safe for concurrent use.
type AuditEventWriter interface {
	WriteAuditEvent(ctx context.Context, event domain.AuditEvent) error
}
