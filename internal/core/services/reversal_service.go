package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/ledger_engine/internal/core/ports/services"
	"github.com/SscSPs/ledger_engine/internal/utils/accounting"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const maxReasonLength = 500

// reversalService creates compensating transactions. Originals are never
// touched; each entry can be reversed at most once.
type reversalService struct {
	BaseService
	ledgerRepo portsrepo.LedgerRepositoryWithTx
	audit      portssvc.AuditSvc
}

// NewReversalService creates the reversal engine. audit may be nil.
func NewReversalService(ledgerRepo portsrepo.LedgerRepositoryWithTx, audit portssvc.AuditSvc, opts ...func(*BaseService)) portssvc.ReversalSvc {
	svc := &reversalService{ledgerRepo: ledgerRepo, audit: audit}
	for _, o := range opts {
		o(&svc.BaseService)
	}
	return svc
}

var _ portssvc.ReversalSvc = (*reversalService)(nil)

// Reverse opens and posts, in one unit of work, a single-entry transaction
// whose entry cancels entryID. Single-entry reversals are exempt from the
// balance check.
func (s *reversalService) Reverse(ctx context.Context, entryID string, reason string, effectiveAt *time.Time, actor string) (*domain.Transaction, error) {
	reason, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}

	var result domain.Transaction
	err = s.runInTx(ctx, s.ledgerRepo, func(tx pgx.Tx) error {
		original, err := s.ledgerRepo.FindEntryByIDInTx(ctx, tx, entryID)
		if err != nil {
			return err
		}
		parent, err := s.ledgerRepo.LockTransactionForShare(ctx, tx, original.TransactionID)
		if err != nil {
			return err
		}
		if !parent.IsPosted() {
			return fmt.Errorf("%w: entry %s belongs to draft transaction %s", apperrors.ErrNotPosted, entryID, parent.TransactionID)
		}
		if err := s.checkReversible(ctx, tx, *original); err != nil {
			return err
		}

		now := s.now()
		txn := domain.Transaction{
			TransactionID: uuid.NewString(),
			Description:   fmt.Sprintf("Reversal: %s", reason),
			EffectiveAt:   effectiveOrNow(effectiveAt, now),
			RecordedAt:    now,
			Metadata: domain.Metadata{
				domain.MetaKind:            domain.KindReversal,
				domain.MetaReason:          reason,
				domain.MetaReversesEntryID: original.EntryID,
			},
			CreatedBy: actor,
		}
		rev := accounting.ReversalOf(*original, uuid.NewString(), txn.TransactionID,
			fmt.Sprintf("Reversal of entry %s: %s", original.EntryID, reason))
		rev.EffectiveAt = txn.EffectiveAt
		rev.RecordedAt = now
		rev.Metadata = domain.Metadata{domain.MetaReason: reason}
		txn.Entries = []domain.Entry{rev}

		if err := s.savePosted(ctx, tx, &txn); err != nil {
			return err
		}
		result = txn
		return nil
	})
	if err != nil {
		s.logReversalError(ctx, err, "Failed to reverse entry", slog.String("entry_id", entryID))
		return nil, err
	}

	s.metrics.ObserveReversal("entry")
	s.LogInfo(ctx, "Entry reversed",
		slog.String("entry_id", entryID),
		slog.String("reversal_transaction_id", result.TransactionID),
		slog.String("reason", reason))
	if s.audit != nil {
		s.audit.Emit(ctx, domain.AuditActionReversed, result, actor, reason)
	}
	return &result, nil
}

// ReverseTransaction posts a balanced transaction reversing every entry of
// a posted transaction.
func (s *reversalService) ReverseTransaction(ctx context.Context, transactionID string, reason string, effectiveAt *time.Time, actor string) (*domain.Transaction, error) {
	reason, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}

	var result domain.Transaction
	err = s.runInTx(ctx, s.ledgerRepo, func(tx pgx.Tx) error {
		original, err := s.ledgerRepo.LockTransactionForShare(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if !original.IsPosted() {
			return fmt.Errorf("%w: transaction %s is a draft", apperrors.ErrNotPosted, transactionID)
		}
		if original.IsReversal() {
			return fmt.Errorf("%w: cannot reverse a transaction that is already a reversal", apperrors.ErrConflict)
		}
		entries, err := s.ledgerRepo.FindEntriesByTransactionIDInTx(ctx, tx, transactionID)
		if err != nil {
			return err
		}

		now := s.now()
		txn := domain.Transaction{
			TransactionID: uuid.NewString(),
			Description:   fmt.Sprintf("Reversal of %s: %s", describe(*original), reason),
			EffectiveAt:   effectiveOrNow(effectiveAt, now),
			RecordedAt:    now,
			Metadata: domain.Metadata{
				domain.MetaKind:                domain.KindReversal,
				domain.MetaReason:              reason,
				domain.MetaReversesTransaction: original.TransactionID,
			},
			CreatedBy: actor,
			Entries:   make([]domain.Entry, 0, len(entries)),
		}
		for _, e := range entries {
			if err := s.checkReversible(ctx, tx, e); err != nil {
				return err
			}
			rev := accounting.ReversalOf(e, uuid.NewString(), txn.TransactionID,
				fmt.Sprintf("Reversal of entry %s: %s", e.EntryID, reason))
			rev.EffectiveAt = txn.EffectiveAt
			rev.RecordedAt = now
			rev.Metadata = domain.Metadata{domain.MetaReason: reason}
			txn.Entries = append(txn.Entries, rev)
		}
		if err := accounting.CheckBalanced(txn.Entries); err != nil {
			return fmt.Errorf("%w: %s", apperrors.ErrUnbalanced, err.Error())
		}

		if err := s.savePosted(ctx, tx, &txn); err != nil {
			return err
		}
		result = txn
		return nil
	})
	if err != nil {
		s.logReversalError(ctx, err, "Failed to reverse transaction", slog.String("transaction_id", transactionID))
		return nil, err
	}

	s.metrics.ObserveReversal("transaction")
	s.LogInfo(ctx, "Transaction reversed",
		slog.String("transaction_id", transactionID),
		slog.String("reversal_transaction_id", result.TransactionID),
		slog.String("amount", sumOf(result.Entries).String()))
	if s.audit != nil {
		s.audit.Emit(ctx, domain.AuditActionReversed, result, actor, reason)
	}
	return &result, nil
}

// checkReversible rejects reversal entries and entries that already have a
// reversal. The unique index on reverses_entry_id backs the second check
// against concurrent reversals.
func (s *reversalService) checkReversible(ctx context.Context, tx pgx.Tx, e domain.Entry) error {
	if e.ReversesEntryID != nil {
		return fmt.Errorf("%w: entry %s is itself a reversal", apperrors.ErrConflict, e.EntryID)
	}
	existing, err := s.ledgerRepo.FindReversalOfInTx(ctx, tx, e.EntryID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: entry %s was reversed by %s", apperrors.ErrAlreadyReversed, e.EntryID, existing.EntryID)
	case errors.Is(err, apperrors.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("failed to check existing reversal: %w", err)
	}
}

func (s *reversalService) savePosted(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	if err := s.ledgerRepo.SaveTransactionInTx(ctx, tx, *txn); err != nil {
		return err
	}
	for _, e := range txn.Entries {
		if err := s.ledgerRepo.SaveEntryInTx(ctx, tx, e); err != nil {
			return err
		}
	}
	postedAt := s.now()
	if err := s.ledgerRepo.MarkTransactionPostedInTx(ctx, tx, txn.TransactionID, postedAt); err != nil {
		return err
	}
	txn.PostedAt = &postedAt
	return nil
}

func (s *reversalService) logReversalError(ctx context.Context, err error, msg string, keyvals ...any) {
	if isBusinessError(err) {
		s.LogInfo(ctx, msg, append([]any{slog.String("reason", err.Error())}, keyvals...)...)
		return
	}
	s.LogError(ctx, err, msg, keyvals...)
}

func normalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", fmt.Errorf("%w: reason is required", apperrors.ErrValidation)
	}
	if len(reason) > maxReasonLength {
		return "", fmt.Errorf("%w: reason exceeds %d characters", apperrors.ErrValidation, maxReasonLength)
	}
	return reason, nil
}

func describe(t domain.Transaction) string {
	if t.Description != "" {
		return t.Description
	}
	return "transaction " + t.TransactionID
}
