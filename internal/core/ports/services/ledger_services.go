package services

import (
	"context"
	"time"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	"github.com/SscSPs/ledger_engine/internal/dto"
)

// TransactionEnvelopeSvc builds draft transactions.
type TransactionEnvelopeSvc interface {
	OpenTransaction(ctx context.Context, req dto.OpenTransactionRequest, actor string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, transactionID string, req dto.UpdateTransactionRequest, actor string) (*domain.Transaction, error)

	// AddEntry fails with ErrImmutable once the transaction is posted.
	AddEntry(ctx context.Context, transactionID string, req dto.AddEntryRequest, actor string) (*domain.Entry, error)
	UpdateEntry(ctx context.Context, entryID string, req dto.UpdateEntryRequest, actor string) (*domain.Entry, error)
}

// PostingSvc validates balance and marks transactions posted.
type PostingSvc interface {
	// Post is idempotent: posting a posted transaction returns it unchanged.
	Post(ctx context.Context, transactionID string, actor string) (*domain.Transaction, error)

	// RecordTransaction opens, fills and posts a transaction atomically.
	RecordTransaction(ctx context.Context, req dto.RecordTransactionRequest, actor string) (*domain.Transaction, error)
}

// TransactionReaderSvc defines read operations for transactions.
type TransactionReaderSvc interface {
	// GetTransaction returns the transaction with its entries.
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	EntriesFor(ctx context.Context, transactionID string) ([]domain.Entry, error)
}

// LedgerSvcFacade combines the envelope, posting and read services.
type LedgerSvcFacade interface {
	TransactionEnvelopeSvc
	PostingSvc
	TransactionReaderSvc
}

// BalanceSvc derives balances and history from posted entries.
type BalanceSvc interface {
	Balance(ctx context.Context, accountID string, q domain.BalanceQuery) (*domain.AccountBalance, error)
	History(ctx context.Context, accountID string, q domain.HistoryQuery) (*domain.HistoryPage, error)
}

// ReversalSvc is the only sanctioned correction path for posted data.
type ReversalSvc interface {
	// Reverse posts a single-entry transaction cancelling entryID.
	Reverse(ctx context.Context, entryID string, reason string, effectiveAt *time.Time, actor string) (*domain.Transaction, error)

	// ReverseTransaction posts one balanced transaction cancelling every entry of transactionID.
	ReverseTransaction(ctx context.Context, transactionID string, reason string, effectiveAt *time.Time, actor string) (*domain.Transaction, error)
}

// AuditSvc emits audit events for committed posts and reversals.
type AuditSvc interface {
	Emit(ctx context.Context, action string, txn domain.Transaction, actor string, reason string)
}
