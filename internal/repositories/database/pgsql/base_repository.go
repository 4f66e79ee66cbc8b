package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATEs raised by the immutability triggers.
const (
	codeEntryImmutable       = "LG001"
	codeTransactionImmutable = "LG002"
	codeCurrencyFixed        = "LG003"
)

const reversesIndex = "uq_ledger_entries_reverses"

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	Pool *pgxpool.Pool
}

// Begin starts a new database transaction
func (r *BaseRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewAppError("INTERNAL_ERROR", "failed to begin transaction", err)
	}
	return tx, nil
}

// Commit commits a transaction
func (r *BaseRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err, "failed to commit transaction")
	}
	return nil
}

// Rollback rolls back a transaction
func (r *BaseRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return apperrors.NewAppError("INTERNAL_ERROR", "failed to rollback transaction", err)
	}
	return nil
}

// mapPgError translates driver errors into the application's sentinels.
// Errors it does not recognise are wrapped with msg.
func mapPgError(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeEntryImmutable, codeTransactionImmutable, codeCurrencyFixed:
			return fmt.Errorf("%w: %s", apperrors.ErrImmutable, pgErr.Message)
		case "23505":
			if pgErr.ConstraintName == reversesIndex {
				return fmt.Errorf("%w: %s", apperrors.ErrAlreadyReversed, pgErr.Detail)
			}
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicate, pgErr.Detail)
		case "23503":
			return fmt.Errorf("%w: %s", apperrors.ErrNotFound, pgErr.Detail)
		case "22003", "23514":
			// numeric_value_out_of_range, check_violation
			return fmt.Errorf("%w: %s", apperrors.ErrValidation, pgErr.Message)
		case "22P02":
			// invalid_text_representation, e.g. a malformed UUID
			return fmt.Errorf("%w: %s", apperrors.ErrNotFound, pgErr.Message)
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", apperrors.ErrConflict, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
