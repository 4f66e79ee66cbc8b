package pgsql

import (
	"context"
	"fmt"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	"github.com/SscSPs/ledger_engine/internal/utils/mapping"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxAuditRepository appends audit events to ledger_audit_events.
type PgxAuditRepository struct {
	pool *pgxpool.Pool
}

// NewPgxAuditRepository creates the PostgreSQL audit sink.
func NewPgxAuditRepository(pool *pgxpool.Pool) *PgxAuditRepository {
	return &PgxAuditRepository{pool: pool}
}

var _ portsrepo.AuditEventWriter = (*PgxAuditRepository)(nil)

func (r *PgxAuditRepository) WriteAuditEvent(ctx context.Context, event domain.AuditEvent) error {
	m, err := mapping.ToModelAuditEvent(event)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO ledger_audit_events (event_id, action, transaction_id, entries, actor, reason, occurred_at, checksum)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`, m.EventID, m.Action, m.TransactionID, m.Entries, m.Actor, m.Reason, m.OccurredAt, m.Checksum)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("failed to insert audit event %s", m.EventID))
	}
	return nil
}
