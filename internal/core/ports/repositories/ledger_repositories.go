package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionReader defines read operations for transactions and their entries.
// Returned entries carry the currency of their account.
type TransactionReader interface {
	// FindTransactionByID retrieves a transaction without its entries.
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// FindEntriesByTransactionID returns every entry of a transaction.
	FindEntriesByTransactionID(ctx context.Context, transactionID string) ([]domain.Entry, error)

	// FindEntryByID retrieves a single entry.
	FindEntryByID(ctx context.Context, entryID string) (*domain.Entry, error)
}

// TransactionWriterInTx defines the writes and locking reads used by the
// envelope, posting and reversal paths. All of them run in a caller-owned tx.
type TransactionWriterInTx interface {
	SaveTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction) error

	// LockTransactionForUpdate takes the exclusive per-transaction lock used by posting.
	LockTransactionForUpdate(ctx context.Context, tx pgx.Tx, transactionID string) (*domain.Transaction, error)

	// LockTransactionForShare takes the shared lock used while appending entries.
	LockTransactionForShare(ctx context.Context, tx pgx.Tx, transactionID string) (*domain.Transaction, error)

	// UpdateTransactionInTx rewrites description, effective_at and metadata of a
	// draft, moving its entries' effective_at along. Fails with ErrImmutable once posted.
	UpdateTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction) error

	// MarkTransactionPostedInTx sets posted_at. Fails with ErrConflict if it was already set.
	MarkTransactionPostedInTx(ctx context.Context, tx pgx.Tx, transactionID string, postedAt time.Time) error

	// SaveEntryInTx appends an entry. Fails with ErrImmutable when the parent is
	// posted and ErrAlreadyReversed when the reversed entry already has a reversal.
	SaveEntryInTx(ctx context.Context, tx pgx.Tx, entry domain.Entry) error

	// UpdateEntryInTx rewrites amount, direction, account and description,
	// checking the parent's posted_at in the same statement.
	UpdateEntryInTx(ctx context.Context, tx pgx.Tx, entry domain.Entry) error

	FindEntryByIDInTx(ctx context.Context, tx pgx.Tx, entryID string) (*domain.Entry, error)
	FindEntriesByTransactionIDInTx(ctx context.Context, tx pgx.Tx, transactionID string) ([]domain.Entry, error)

	// FindReversalOfInTx returns the entry reversing entryID, or ErrNotFound.
	FindReversalOfInTx(ctx context.Context, tx pgx.Tx, entryID string) (*domain.Entry, error)
}

// EntryQuerier defines the aggregate and history reads over posted entries.
type EntryQuerier interface {
	// SumPostedEntries returns the debit and credit totals of an account's
	// posted entries, restricted by the query.
	SumPostedEntries(ctx context.Context, accountID string, q domain.BalanceQuery) (debits decimal.Decimal, credits decimal.Decimal, err error)

	// ListPostedEntriesByAccount pages through posted entries ordered by
	// (effective_at, recorded_at, entry_id). It returns a token for the next page.
	ListPostedEntriesByAccount(ctx context.Context, accountID string, q domain.HistoryQuery) ([]domain.Entry, *string, error)
}

// LedgerRepositoryFacade combines all transaction/entry repository interfaces
type LedgerRepositoryFacade interface {
	TransactionReader
	TransactionWriterInTx
	EntryQuerier
}

// LedgerRepositoryWithTx extends LedgerRepositoryFacade with transaction capabilities
type LedgerRepositoryWithTx interface {
	LedgerRepositoryFacade
	TransactionManager
}
