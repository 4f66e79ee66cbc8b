package pgsql

import (
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRepositoryProvider wires the PostgreSQL repositories. audit may be
// nil, in which case the caller sets RepositoryProvider.AuditWriter.
func NewRepositoryProvider(dbPool *pgxpool.Pool, audit portsrepo.AuditEventWriter) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		AccountRepo: newPgxAccountRepository(dbPool),
		LedgerRepo:  newPgxLedgerRepository(dbPool),
		AuditWriter: audit,
	}
}
