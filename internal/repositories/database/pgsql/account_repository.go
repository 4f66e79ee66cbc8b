package pgsql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	"github.com/SscSPs/ledger_engine/internal/models"
	"github.com/SscSPs/ledger_engine/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `account_id, owner_type, owner_id, account_number, account_type, currency_code, name, is_active, created_at, created_by, last_updated_at, last_updated_by`

type PgxAccountRepository struct {
	BaseRepository
}

// newPgxAccountRepository creates a new repository for account data.
func newPgxAccountRepository(pool *pgxpool.Pool) portsrepo.AccountRepositoryWithTx {
	return &PgxAccountRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.AccountRepositoryWithTx = (*PgxAccountRepository)(nil)

// SaveAccount inserts a new account.
func (r *PgxAccountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	m := mapping.ToModelAccount(account)
	query := `
		INSERT INTO ledger_accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err := r.Pool.Exec(ctx, query,
		m.AccountID,
		m.OwnerType,
		m.OwnerID,
		nullString(m.AccountNumber),
		m.AccountType,
		m.CurrencyCode,
		m.Name,
		m.IsActive,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("failed to save account %s", m.AccountID))
	}
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *PgxAccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM ledger_accounts WHERE account_id = $1;`
	acc, err := scanAccount(r.Pool.QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, mapPgError(err, fmt.Sprintf("failed to find account by ID %s", accountID))
	}
	return acc, nil
}

// FindAccountsByIDs retrieves multiple accounts by their IDs. Missing IDs
// are absent from the map.
func (r *PgxAccountRepository) FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	if len(accountIDs) == 0 {
		return map[string]domain.Account{}, nil
	}
	query := `SELECT ` + accountColumns + ` FROM ledger_accounts WHERE account_id = ANY($1);`
	rows, err := r.Pool.Query(ctx, query, accountIDs)
	if err != nil {
		return nil, mapPgError(err, "failed to query accounts by IDs")
	}
	return collectAccountMap(rows)
}

// FindAccounts builds one query from the non-empty filter fields.
func (r *PgxAccountRepository) FindAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Owner != nil {
		add("owner_type = $%d", filter.Owner.Type)
		add("owner_id = $%d", filter.Owner.ID)
	}
	if filter.AccountType != "" {
		add("account_type = $%d", string(filter.AccountType))
	}
	if filter.CurrencyCode != "" {
		add("currency_code = $%d", filter.CurrencyCode)
	}
	if filter.IsActive != nil {
		add("is_active = $%d", *filter.IsActive)
	}

	query := `SELECT ` + accountColumns + ` FROM ledger_accounts`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at, account_id LIMIT $%d OFFSET $%d;`, len(args)-1, len(args))

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err, "failed to list accounts")
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

// FindAccountByIDForUpdate selects one account and locks it exclusively.
func (r *PgxAccountRepository) FindAccountByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM ledger_accounts WHERE account_id = $1 FOR UPDATE;`
	acc, err := scanAccount(tx.QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, mapPgError(err, fmt.Sprintf("failed to lock account %s", accountID))
	}
	return acc, nil
}

// FindAccountsByIDsForShare takes FOR SHARE locks in ascending ID order.
// The ORDER BY is what fixes the lock order.
func (r *PgxAccountRepository) FindAccountsByIDsForShare(ctx context.Context, tx pgx.Tx, accountIDs []string) (map[string]domain.Account, error) {
	if len(accountIDs) == 0 {
		return map[string]domain.Account{}, nil
	}
	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)

	query := `SELECT ` + accountColumns + ` FROM ledger_accounts WHERE account_id = ANY($1) ORDER BY account_id FOR SHARE;`
	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return nil, mapPgError(err, "failed to lock accounts")
	}
	return collectAccountMap(rows)
}

// UpdateAccountInTx writes the mutable account fields.
func (r *PgxAccountRepository) UpdateAccountInTx(ctx context.Context, tx pgx.Tx, account domain.Account) error {
	m := mapping.ToModelAccount(account)
	query := `
		UPDATE ledger_accounts
		SET name = $1, account_number = $2, currency_code = $3, is_active = $4, last_updated_at = $5, last_updated_by = $6
		WHERE account_id = $7;
	`
	cmdTag, err := tx.Exec(ctx, query,
		m.Name,
		nullString(m.AccountNumber),
		m.CurrencyCode,
		m.IsActive,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
		m.AccountID,
	)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("failed to update account %s", m.AccountID))
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// HasPostedEntriesInTx reports whether any posted entry references the account.
func (r *PgxAccountRepository) HasPostedEntriesInTx(ctx context.Context, tx pgx.Tx, accountID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entries e
			JOIN ledger_transactions t ON t.transaction_id = e.transaction_id
			WHERE e.account_id = $1 AND t.posted_at IS NOT NULL
		);
	`
	var exists bool
	if err := tx.QueryRow(ctx, query, accountID).Scan(&exists); err != nil {
		return false, mapPgError(err, "failed to check posted entries")
	}
	return exists, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var m models.Account
	var number sql.NullString
	err := row.Scan(
		&m.AccountID,
		&m.OwnerType,
		&m.OwnerID,
		&number,
		&m.AccountType,
		&m.CurrencyCode,
		&m.Name,
		&m.IsActive,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	m.AccountNumber = number.String
	acc := mapping.ToDomainAccount(m)
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.LastUpdatedAt = acc.LastUpdatedAt.UTC()
	return &acc, nil
}

func collectAccountMap(rows pgx.Rows) (map[string]domain.Account, error) {
	defer rows.Close()
	out := make(map[string]domain.Account)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		out[acc.AccountID] = *acc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
