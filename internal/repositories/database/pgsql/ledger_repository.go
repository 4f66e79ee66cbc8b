package pgsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	"github.com/SscSPs/ledger_engine/internal/models"
	"github.com/SscSPs/ledger_engine/internal/utils/mapping"
	"github.com/SscSPs/ledger_engine/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	transactionColumns = `transaction_id, description, effective_at, recorded_at, posted_at, metadata, created_by`
	entryColumns       = `e.entry_id, e.transaction_id, e.account_id, e.amount, e.direction, e.description, e.effective_at, e.recorded_at, e.reverses_entry_id, e.metadata, a.currency_code`
	entryFrom          = `FROM ledger_entries e JOIN ledger_accounts a ON a.account_id = e.account_id`
)

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgxLedgerRepository struct {
	BaseRepository
}

// newPgxLedgerRepository creates a new repository for transactions and entries.
func newPgxLedgerRepository(pool *pgxpool.Pool) portsrepo.LedgerRepositoryWithTx {
	return &PgxLedgerRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.LedgerRepositoryWithTx = (*PgxLedgerRepository)(nil)

func (r *PgxLedgerRepository) SaveTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction) error {
	m, err := mapping.ToModelTransaction(txn)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO ledger_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err = tx.Exec(ctx, query,
		m.TransactionID,
		m.Description,
		m.EffectiveAt,
		m.RecordedAt,
		m.PostedAt,
		m.Metadata,
		m.CreatedBy,
	)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("failed to insert transaction %s", m.TransactionID))
	}
	return nil
}

// FindTransactionByID retrieves a transaction without its entries.
func (r *PgxLedgerRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return r.selectTransaction(ctx, r.Pool, transactionID, "")
}

func (r *PgxLedgerRepository) LockTransactionForUpdate(ctx context.Context, tx pgx.Tx, transactionID string) (*domain.Transaction, error) {
	return r.selectTransaction(ctx, tx, transactionID, " FOR UPDATE")
}

func (r *PgxLedgerRepository) LockTransactionForShare(ctx context.Context, tx pgx.Tx, transactionID string) (*domain.Transaction, error) {
	return r.selectTransaction(ctx, tx, transactionID, " FOR SHARE")
}

func (r *PgxLedgerRepository) selectTransaction(ctx context.Context, q querier, transactionID, lock string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE transaction_id = $1` + lock + `;`
	var m models.Transaction
	err := q.QueryRow(ctx, query, transactionID).Scan(
		&m.TransactionID,
		&m.Description,
		&m.EffectiveAt,
		&m.RecordedAt,
		&m.PostedAt,
		&m.Metadata,
		&m.CreatedBy,
	)
	if err != nil {
		return nil, mapPgError(err, fmt.Sprintf("failed to find transaction %s", transactionID))
	}
	txn, err := mapping.ToDomainTransaction(m)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// UpdateTransactionInTx rewrites a draft and moves its entries' effective_at.
// The posted_at IS NULL guard makes the update a no-op on posted rows.
func (r *PgxLedgerRepository) UpdateTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction) error {
	m, err := mapping.ToModelTransaction(txn)
	if err != nil {
		return err
	}
	cmdTag, err := tx.Exec(ctx, `
		UPDATE ledger_transactions
		SET description = $1, effective_at = $2, metadata = $3
		WHERE transaction_id = $4 AND posted_at IS NULL;
	`, m.Description, m.EffectiveAt, m.Metadata, m.TransactionID)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("failed to update transaction %s", m.TransactionID))
	}
	if cmdTag.RowsAffected() == 0 {
		return r.missingOrPosted(ctx, tx, m.TransactionID, apperrors.ErrImmutable)
	}

	_, err = tx.Exec(ctx, `UPDATE ledger_entries SET effective_at = $1 WHERE transaction_id = $2;`, m.EffectiveAt, m.TransactionID)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("failed to move entries of transaction %s", m.TransactionID))
	}
	return nil
}

// MarkTransactionPostedInTx is the compare-and-set on posted_at.
func (r *PgxLedgerRepository) MarkTransactionPostedInTx(ctx context.Context, tx pgx.Tx, transactionID string, postedAt time.Time) error {
	cmdTag, err := tx.Exec(ctx, `
		UPDATE ledger_transactions SET posted_at = $1
		WHERE transaction_id = $2 AND posted_at IS NULL;
	`, postedAt, transactionID)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("failed to post transaction %s", transactionID))
	}
	if cmdTag.RowsAffected() == 0 {
		return r.missingOrPosted(ctx, tx, transactionID, apperrors.ErrConflict)
	}
	return nil
}

// missingOrPosted explains a zero-row update on a transaction.
func (r *PgxLedgerRepository) missingOrPosted(ctx context.Context, tx pgx.Tx, transactionID string, postedErr error) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_transactions WHERE transaction_id = $1);`, transactionID).Scan(&exists); err != nil {
		return mapPgError(err, "failed to check transaction")
	}
	if !exists {
		return apperrors.ErrNotFound
	}
	return fmt.Errorf("%w: transaction %s is posted", postedErr, transactionID)
}

// SaveEntryInTx inserts an entry. The trigger rejects posted parents and the
// unique index rejects a second reversal of the same entry.
func (r *PgxLedgerRepository) SaveEntryInTx(ctx context.Context, tx pgx.Tx, entry domain.Entry) error {
	m, err := mapping.ToModelEntry(entry)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO ledger_entries (entry_id, transaction_id, account_id, amount, direction, description, effective_at, recorded_at, reverses_entry_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err = tx.Exec(ctx, query,
		m.EntryID,
		m.TransactionID,
		m.AccountID,
		m.Amount,
		m.Direction,
		m.Description,
		m.EffectiveAt,
		m.RecordedAt,
		m.ReversesEntryID,
		m.Metadata,
	)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("failed to insert entry %s", m.EntryID))
	}
	return nil
}

// UpdateEntryInTx guards on the parent's posted_at in the same statement;
// the trigger backs it for any other writer.
func (r *PgxLedgerRepository) UpdateEntryInTx(ctx context.Context, tx pgx.Tx, entry domain.Entry) error {
	m, err := mapping.ToModelEntry(entry)
	if err != nil {
		return err
	}
	cmdTag, err := tx.Exec(ctx, `
		UPDATE ledger_entries e
		SET account_id = $1, amount = $2, direction = $3, description = $4
		FROM ledger_transactions t
		WHERE e.entry_id = $5 AND t.transaction_id = e.transaction_id AND t.posted_at IS NULL;
	`, m.AccountID, m.Amount, m.Direction, m.Description, m.EntryID)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("failed to update entry %s", m.EntryID))
	}
	if cmdTag.RowsAffected() == 0 {
		if _, err := r.FindEntryByIDInTx(ctx, tx, m.EntryID); err != nil {
			return err
		}
		return fmt.Errorf("%w: entry %s belongs to a posted transaction", apperrors.ErrImmutable, m.EntryID)
	}
	return nil
}

func (r *PgxLedgerRepository) FindEntryByID(ctx context.Context, entryID string) (*domain.Entry, error) {
	return r.selectEntry(ctx, r.Pool, `e.entry_id = $1`, entryID)
}

func (r *PgxLedgerRepository) FindEntryByIDInTx(ctx context.Context, tx pgx.Tx, entryID string) (*domain.Entry, error) {
	return r.selectEntry(ctx, tx, `e.entry_id = $1`, entryID)
}

// FindReversalOfInTx returns the entry whose reverses_entry_id is entryID.
func (r *PgxLedgerRepository) FindReversalOfInTx(ctx context.Context, tx pgx.Tx, entryID string) (*domain.Entry, error) {
	return r.selectEntry(ctx, tx, `e.reverses_entry_id = $1`, entryID)
}

func (r *PgxLedgerRepository) selectEntry(ctx context.Context, q querier, where string, arg any) (*domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` ` + entryFrom + ` WHERE ` + where + `;`
	e, err := scanEntry(q.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapPgError(err, "failed to find entry")
	}
	return e, nil
}

func (r *PgxLedgerRepository) FindEntriesByTransactionID(ctx context.Context, transactionID string) ([]domain.Entry, error) {
	return r.selectEntriesByTransaction(ctx, r.Pool, transactionID)
}

func (r *PgxLedgerRepository) FindEntriesByTransactionIDInTx(ctx context.Context, tx pgx.Tx, transactionID string) ([]domain.Entry, error) {
	return r.selectEntriesByTransaction(ctx, tx, transactionID)
}

func (r *PgxLedgerRepository) selectEntriesByTransaction(ctx context.Context, q querier, transactionID string) ([]domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` ` + entryFrom + ` WHERE e.transaction_id = $1 ORDER BY e.recorded_at, e.entry_id;`
	rows, err := q.Query(ctx, query, transactionID)
	if err != nil {
		return nil, mapPgError(err, fmt.Sprintf("failed to query entries of transaction %s", transactionID))
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SumPostedEntries aggregates in the database; nothing is cached.
func (r *PgxLedgerRepository) SumPostedEntries(ctx context.Context, accountID string, q domain.BalanceQuery) (decimal.Decimal, decimal.Decimal, error) {
	conds := []string{`e.account_id = $1`, `t.posted_at IS NOT NULL`}
	args := []any{accountID}
	if q.AsOf != nil {
		args = append(args, *q.AsOf)
		conds = append(conds, fmt.Sprintf(`e.effective_at <= $%d`, len(args)))
	}
	if q.RecordedAsOf != nil {
		args = append(args, *q.RecordedAsOf)
		conds = append(conds, fmt.Sprintf(`e.recorded_at <= $%d AND t.posted_at <= $%d`, len(args), len(args)))
	}

	query := `
		SELECT
			COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'debit'), 0),
			COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'credit'), 0)
		FROM ledger_entries e
		JOIN ledger_transactions t ON t.transaction_id = e.transaction_id
		WHERE ` + strings.Join(conds, " AND ") + `;`

	var debits, credits decimal.Decimal
	if err := r.Pool.QueryRow(ctx, query, args...).Scan(&debits, &credits); err != nil {
		return decimal.Zero, decimal.Zero, mapPgError(err, fmt.Sprintf("failed to sum entries of account %s", accountID))
	}
	return debits, credits, nil
}

// ListPostedEntriesByAccount pages with a keyset on
// (effective_at, recorded_at, entry_id). It fetches one extra row to know
// whether another page exists.
func (r *PgxLedgerRepository) ListPostedEntriesByAccount(ctx context.Context, accountID string, q domain.HistoryQuery) ([]domain.Entry, *string, error) {
	conds := []string{`e.account_id = $1`, `t.posted_at IS NOT NULL`}
	args := []any{accountID}
	if q.Start != nil {
		args = append(args, *q.Start)
		conds = append(conds, fmt.Sprintf(`e.effective_at >= $%d`, len(args)))
	}
	if q.End != nil {
		args = append(args, *q.End)
		conds = append(conds, fmt.Sprintf(`e.effective_at <= $%d`, len(args)))
	}
	if q.NextToken != "" {
		c, err := pagination.DecodeToken(q.NextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
		}
		args = append(args, c.EffectiveAt, c.RecordedAt, c.ID)
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(e.effective_at, e.recorded_at, e.entry_id) > ($%d, $%d, $%d)`, n-2, n-1, n))
	}
	args = append(args, q.Limit+1)

	query := `SELECT ` + entryColumns + ` ` + entryFrom + `
		JOIN ledger_transactions t ON t.transaction_id = e.transaction_id
		WHERE ` + strings.Join(conds, " AND ") + fmt.Sprintf(`
		ORDER BY e.effective_at, e.recorded_at, e.entry_id
		LIMIT $%d;`, len(args))

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, mapPgError(err, fmt.Sprintf("failed to list entries of account %s", accountID))
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, nil, err
	}

	var next *string
	if len(entries) > q.Limit {
		entries = entries[:q.Limit]
		last := entries[len(entries)-1]
		token := pagination.EncodeToken(pagination.Cursor{EffectiveAt: last.EffectiveAt, RecordedAt: last.RecordedAt, ID: last.EntryID})
		next = &token
	}
	return entries, next, nil
}

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var m models.Entry
	var reverses sql.NullString
	err := row.Scan(
		&m.EntryID,
		&m.TransactionID,
		&m.AccountID,
		&m.Amount,
		&m.Direction,
		&m.Description,
		&m.EffectiveAt,
		&m.RecordedAt,
		&reverses,
		&m.Metadata,
		&m.CurrencyCode,
	)
	if err != nil {
		return nil, err
	}
	if reverses.Valid {
		m.ReversesEntryID = &reverses.String
	}
	e, err := mapping.ToDomainEntry(m)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]domain.Entry, error) {
	defer rows.Close()
	entries := make([]domain.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}
	return entries, nil
}
