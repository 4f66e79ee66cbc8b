package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/ledger_engine/internal/core/ports/services"
	"github.com/SscSPs/ledger_engine/internal/dto"
	"github.com/SscSPs/ledger_engine/internal/platform/metrics"
	"github.com/SscSPs/ledger_engine/internal/utils/accounting"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ledgerService implements the transaction envelope, the posting engine and
// transaction reads.
type ledgerService struct {
	BaseService
	accountRepo portsrepo.AccountRepositoryWithTx
	ledgerRepo  portsrepo.LedgerRepositoryWithTx
	audit       portssvc.AuditSvc
}

// LedgerServiceOption is a functional option for configuring the ledger service
type LedgerServiceOption func(*ledgerService)

// WithLedgerAudit sets the audit emitter used after successful posts.
func WithLedgerAudit(audit portssvc.AuditSvc) LedgerServiceOption {
	return func(s *ledgerService) {
		s.audit = audit
	}
}

// WithLedgerBase applies BaseService options (clock, metrics).
func WithLedgerBase(opts ...func(*BaseService)) LedgerServiceOption {
	return func(s *ledgerService) {
		for _, o := range opts {
			o(&s.BaseService)
		}
	}
}

// NewLedgerService creates the ledger service.
func NewLedgerService(accountRepo portsrepo.AccountRepositoryWithTx, ledgerRepo portsrepo.LedgerRepositoryWithTx, options ...LedgerServiceOption) portssvc.LedgerSvcFacade {
	svc := &ledgerService{accountRepo: accountRepo, ledgerRepo: ledgerRepo}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.LedgerSvcFacade = (*ledgerService)(nil)

func (s *ledgerService) OpenTransaction(ctx context.Context, req dto.OpenTransactionRequest, actor string) (*domain.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	txn := domain.Transaction{
		TransactionID: uuid.NewString(),
		Description:   strings.TrimSpace(req.Description),
		EffectiveAt:   effectiveOrNow(req.EffectiveAt, now),
		RecordedAt:    now,
		Metadata:      req.Metadata.Clone(),
		CreatedBy:     actor,
		Entries:       []domain.Entry{},
	}

	err := s.runInTx(ctx, s.ledgerRepo, func(tx pgx.Tx) error {
		return s.ledgerRepo.SaveTransactionInTx(ctx, tx, txn)
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to open transaction")
		return nil, err
	}

	s.LogInfo(ctx, "Transaction opened",
		slog.String("transaction_id", txn.TransactionID),
		slog.Time("effective_at", txn.EffectiveAt))
	return &txn, nil
}

func (s *ledgerService) UpdateTransaction(ctx context.Context, transactionID string, req dto.UpdateTransactionRequest, actor string) (*domain.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result *domain.Transaction
	err := s.runInTx(ctx, s.ledgerRepo, func(tx pgx.Tx) error {
		txn, err := s.ledgerRepo.LockTransactionForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if txn.IsPosted() {
			return fmt.Errorf("%w: transaction %s is posted", apperrors.ErrImmutable, transactionID)
		}
		if req.Description != nil {
			txn.Description = strings.TrimSpace(*req.Description)
		}
		if req.EffectiveAt != nil {
			txn.EffectiveAt = effectiveOrNow(req.EffectiveAt, txn.EffectiveAt)
		}
		if req.Metadata != nil {
			txn.Metadata = req.Metadata.Clone()
		}
		if err := s.ledgerRepo.UpdateTransactionInTx(ctx, tx, *txn); err != nil {
			return err
		}
		entries, err := s.ledgerRepo.FindEntriesByTransactionIDInTx(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		txn.Entries = entries
		result = txn
		return nil
	})
	if err != nil {
		s.logLedgerError(ctx, err, "Failed to update transaction", slog.String("transaction_id", transactionID))
		return nil, err
	}
	return result, nil
}

// AddEntry holds a shared lock on the transaction row for the duration of
// the insert: concurrent AddEntry calls proceed together, while Post (which
// locks exclusively) waits for them or makes them fail with ErrImmutable.
func (s *ledgerService) AddEntry(ctx context.Context, transactionID string, req dto.AddEntryRequest, actor string) (*domain.Entry, error) {
	direction, err := validateEntryRequest(req)
	if err != nil {
		return nil, err
	}

	var entry domain.Entry
	err = s.runInTx(ctx, s.ledgerRepo, func(tx pgx.Tx) error {
		txn, err := s.ledgerRepo.LockTransactionForShare(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if txn.IsPosted() {
			return fmt.Errorf("%w: transaction %s is posted", apperrors.ErrImmutable, transactionID)
		}

		account, err := s.lockActiveAccount(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}

		entry = domain.Entry{
			EntryID:       uuid.NewString(),
			TransactionID: transactionID,
			AccountID:     account.AccountID,
			Amount:        req.Amount,
			Direction:     direction,
			Description:   strings.TrimSpace(req.Description),
			EffectiveAt:   txn.EffectiveAt,
			RecordedAt:    txn.RecordedAt,
			Metadata:      req.Metadata.Clone(),
			CurrencyCode:  account.CurrencyCode,
		}
		return s.ledgerRepo.SaveEntryInTx(ctx, tx, entry)
	})
	if err != nil {
		s.logLedgerError(ctx, err, "Failed to add entry", slog.String("transaction_id", transactionID))
		return nil, err
	}

	s.LogDebug(ctx, "Entry added",
		slog.String("transaction_id", transactionID),
		slog.String("entry_id", entry.EntryID),
		slog.String("account_id", entry.AccountID),
		slog.String("direction", string(entry.Direction)),
		slog.String("amount", entry.Amount.String()))
	return &entry, nil
}

func (s *ledgerService) UpdateEntry(ctx context.Context, entryID string, req dto.UpdateEntryRequest, actor string) (*domain.Entry, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Amount != nil {
		if err := domain.ValidateAmount(*req.Amount); err != nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
		}
	}

	var entry *domain.Entry
	err := s.runInTx(ctx, s.ledgerRepo, func(tx pgx.Tx) error {
		located, err := s.ledgerRepo.FindEntryByIDInTx(ctx, tx, entryID)
		if err != nil {
			return err
		}
		txn, err := s.ledgerRepo.LockTransactionForUpdate(ctx, tx, located.TransactionID)
		if err != nil {
			return err
		}
		if txn.IsPosted() {
			return fmt.Errorf("%w: entry %s belongs to posted transaction %s", apperrors.ErrImmutable, entryID, txn.TransactionID)
		}
		// Re-read under the lock: a writer that committed between the
		// first read and the lock must not be overwritten.
		current, err := s.ledgerRepo.FindEntryByIDInTx(ctx, tx, entryID)
		if err != nil {
			return err
		}

		if req.AccountID != nil && *req.AccountID != current.AccountID {
			account, err := s.lockActiveAccount(ctx, tx, *req.AccountID)
			if err != nil {
				return err
			}
			current.AccountID = account.AccountID
			current.CurrencyCode = account.CurrencyCode
		}
		if req.Amount != nil {
			current.Amount = *req.Amount
		}
		if req.Direction != nil {
			direction, err := domain.ParseDirection(*req.Direction)
			if err != nil {
				return fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
			}
			current.Direction = direction
		}
		if req.Description != nil {
			current.Description = strings.TrimSpace(*req.Description)
		}

		if err := s.ledgerRepo.UpdateEntryInTx(ctx, tx, *current); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		s.logLedgerError(ctx, err, "Failed to update entry", slog.String("entry_id", entryID))
		return nil, err
	}
	return entry, nil
}

// Post validates balance and marks the transaction posted in one unit of
// work scoped to the transaction's row lock.
func (s *ledgerService) Post(ctx context.Context, transactionID string, actor string) (*domain.Transaction, error) {
	var (
		result        *domain.Transaction
		alreadyPosted bool
	)
	err := s.runInTx(ctx, s.ledgerRepo, func(tx pgx.Tx) error {
		txn, err := s.ledgerRepo.LockTransactionForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		entries, err := s.ledgerRepo.FindEntriesByTransactionIDInTx(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		txn.Entries = entries

		if txn.IsPosted() {
			alreadyPosted = true
			result = txn
			return nil
		}

		postedAt, err := s.postLocked(ctx, tx, txn)
		if err != nil {
			return err
		}
		txn.PostedAt = &postedAt
		result = txn
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrUnbalanced) {
			s.metrics.ObservePosting(metrics.ResultUnbalanced)
		} else {
			s.metrics.ObservePosting(metrics.ResultError)
		}
		s.logLedgerError(ctx, err, "Failed to post transaction", slog.String("transaction_id", transactionID))
		return nil, err
	}

	if alreadyPosted {
		s.metrics.ObservePosting(metrics.ResultIdempotent)
		s.LogInfo(ctx, "Transaction already posted", slog.String("transaction_id", transactionID))
		return result, nil
	}

	s.metrics.ObservePosting(metrics.ResultPosted)
	s.LogInfo(ctx, "Transaction posted",
		slog.String("transaction_id", transactionID),
		slog.Int("entries", len(result.Entries)))
	if s.audit != nil {
		s.audit.Emit(ctx, domain.AuditActionPosted, *result, actor, "")
	}
	return result, nil
}

// postLocked runs the balance check and the posted_at write for a draft
// whose row is already locked. Entries get the currency of their account
// as read under a shared lock, so the check cannot race a currency change.
func (s *ledgerService) postLocked(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) (time.Time, error) {
	if len(txn.Entries) == 0 {
		return time.Time{}, fmt.Errorf("%w: transaction %s has no entries", apperrors.ErrValidation, txn.TransactionID)
	}

	accounts, err := s.accountRepo.FindAccountsByIDsForShare(ctx, tx, entryAccountIDs(txn.Entries))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to lock accounts: %w", err)
	}
	for i := range txn.Entries {
		account, ok := accounts[txn.Entries[i].AccountID]
		if !ok {
			return time.Time{}, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, txn.Entries[i].AccountID)
		}
		txn.Entries[i].CurrencyCode = account.CurrencyCode
	}

	if err := accounting.CheckBalanced(txn.Entries); err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", apperrors.ErrUnbalanced, err.Error())
	}

	postedAt := s.now()
	if err := s.ledgerRepo.MarkTransactionPostedInTx(ctx, tx, txn.TransactionID, postedAt); err != nil {
		return time.Time{}, err
	}
	return postedAt, nil
}

func (s *ledgerService) RecordTransaction(ctx context.Context, req dto.RecordTransactionRequest, actor string) (*domain.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	directions := make([]domain.Direction, len(req.Entries))
	for i, e := range req.Entries {
		d, err := validateEntryRequest(e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		directions[i] = d
	}

	now := s.now()
	txn := domain.Transaction{
		TransactionID: uuid.NewString(),
		Description:   strings.TrimSpace(req.Description),
		EffectiveAt:   effectiveOrNow(req.EffectiveAt, now),
		RecordedAt:    now,
		Metadata:      req.Metadata.Clone(),
		CreatedBy:     actor,
	}

	err := s.runInTx(ctx, s.ledgerRepo, func(tx pgx.Tx) error {
		if err := s.ledgerRepo.SaveTransactionInTx(ctx, tx, txn); err != nil {
			return err
		}

		ids := make([]string, len(req.Entries))
		for i, e := range req.Entries {
			ids[i] = e.AccountID
		}
		accounts, err := s.accountRepo.FindAccountsByIDsForShare(ctx, tx, ids)
		if err != nil {
			return fmt.Errorf("failed to lock accounts: %w", err)
		}

		entries := make([]domain.Entry, len(req.Entries))
		for i, e := range req.Entries {
			account, ok := accounts[e.AccountID]
			if !ok {
				return fmt.Errorf("%w: account %s", apperrors.ErrNotFound, e.AccountID)
			}
			if !account.IsActive {
				return fmt.Errorf("%w: account %s", apperrors.ErrInactiveAccount, e.AccountID)
			}
			entries[i] = domain.Entry{
				EntryID:       uuid.NewString(),
				TransactionID: txn.TransactionID,
				AccountID:     e.AccountID,
				Amount:        e.Amount,
				Direction:     directions[i],
				Description:   strings.TrimSpace(e.Description),
				EffectiveAt:   txn.EffectiveAt,
				RecordedAt:    now,
				Metadata:      e.Metadata.Clone(),
				CurrencyCode:  account.CurrencyCode,
			}
		}
		if err := accounting.CheckBalanced(entries); err != nil {
			return fmt.Errorf("%w: %s", apperrors.ErrUnbalanced, err.Error())
		}
		for _, e := range entries {
			if err := s.ledgerRepo.SaveEntryInTx(ctx, tx, e); err != nil {
				return err
			}
		}

		postedAt := s.now()
		if err := s.ledgerRepo.MarkTransactionPostedInTx(ctx, tx, txn.TransactionID, postedAt); err != nil {
			return err
		}
		txn.PostedAt = &postedAt
		txn.Entries = entries
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrUnbalanced) {
			s.metrics.ObservePosting(metrics.ResultUnbalanced)
		} else {
			s.metrics.ObservePosting(metrics.ResultError)
		}
		s.logLedgerError(ctx, err, "Failed to record transaction")
		return nil, err
	}

	s.metrics.ObservePosting(metrics.ResultPosted)
	s.LogInfo(ctx, "Transaction recorded",
		slog.String("transaction_id", txn.TransactionID),
		slog.Int("entries", len(txn.Entries)))
	if s.audit != nil {
		s.audit.Emit(ctx, domain.AuditActionPosted, txn, actor, "")
	}
	return &txn, nil
}

func (s *ledgerService) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	txn, err := s.ledgerRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find transaction", slog.String("transaction_id", transactionID))
		}
		return nil, err
	}
	entries, err := s.ledgerRepo.FindEntriesByTransactionID(ctx, transactionID)
	if err != nil {
		s.LogError(ctx, err, "Failed to load entries", slog.String("transaction_id", transactionID))
		return nil, err
	}
	txn.Entries = entries
	return txn, nil
}

func (s *ledgerService) EntriesFor(ctx context.Context, transactionID string) ([]domain.Entry, error) {
	txn, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return txn.Entries, nil
}

// lockActiveAccount takes a shared lock on an account and checks it can
// receive entries.
func (s *ledgerService) lockActiveAccount(ctx context.Context, tx pgx.Tx, accountID string) (*domain.Account, error) {
	accounts, err := s.accountRepo.FindAccountsByIDsForShare(ctx, tx, []string{accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	account, ok := accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
	}
	if !account.IsActive {
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrInactiveAccount, accountID)
	}
	return &account, nil
}

// logLedgerError logs unexpected failures at error level and expected
// business outcomes at info level.
func (s *ledgerService) logLedgerError(ctx context.Context, err error, msg string, keyvals ...any) {
	if isBusinessError(err) {
		s.LogInfo(ctx, msg, append([]any{slog.String("reason", err.Error())}, keyvals...)...)
		return
	}
	s.LogError(ctx, err, msg, keyvals...)
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		apperrors.ErrValidation, apperrors.ErrNotFound, apperrors.ErrUnbalanced,
		apperrors.ErrImmutable, apperrors.ErrInactiveAccount, apperrors.ErrAlreadyReversed,
		apperrors.ErrNotPosted, apperrors.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validateEntryRequest(req dto.AddEntryRequest) (domain.Direction, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}
	direction, err := domain.ParseDirection(req.Direction)
	if err != nil {
		return "", fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return "", fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}
	return direction, nil
}

func effectiveOrNow(effectiveAt *time.Time, now time.Time) time.Time {
	if effectiveAt == nil {
		return now
	}
	return effectiveAt.UTC().Truncate(time.Microsecond)
}

// entryAccountIDs returns the distinct account IDs of entries in ascending
// order, the order locks are taken in.
func entryAccountIDs(entries []domain.Entry) []string {
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.AccountID]; ok {
			continue
		}
		seen[e.AccountID] = struct{}{}
		ids = append(ids, e.AccountID)
	}
	sort.Strings(ids)
	return ids
}

// sumOf is the total of entry amounts, used when logging reversals.
func sumOf(entries []domain.Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
