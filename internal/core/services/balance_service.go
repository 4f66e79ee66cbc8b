package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/ledger_engine/internal/core/ports/services"
	"github.com/SscSPs/ledger_engine/internal/utils/pagination"
)

const (
	defaultHistoryPageSize = 50
	maxHistoryPageSize     = 500
)

// balanceService derives balances by summation on every call. Nothing is
// cached, so a backdated posting is visible to the next as-of query.
type balanceService struct {
	BaseService
	accountRepo portsrepo.AccountReader
	ledgerRepo  portsrepo.EntryQuerier
}

// NewBalanceService creates the balance calculator.
func NewBalanceService(accountRepo portsrepo.AccountReader, ledgerRepo portsrepo.EntryQuerier, opts ...func(*BaseService)) portssvc.BalanceSvc {
	svc := &balanceService{accountRepo: accountRepo, ledgerRepo: ledgerRepo}
	for _, o := range opts {
		o(&svc.BaseService)
	}
	return svc
}

var _ portssvc.BalanceSvc = (*balanceService)(nil)

// Balance returns debits minus credits over the account's posted entries.
func (s *balanceService) Balance(ctx context.Context, accountID string, q domain.BalanceQuery) (*domain.AccountBalance, error) {
	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find account for balance", slog.String("account_id", accountID))
		}
		return nil, err
	}

	debits, credits, err := s.ledgerRepo.SumPostedEntries(ctx, accountID, q)
	if err != nil {
		s.LogError(ctx, err, "Failed to sum posted entries", slog.String("account_id", accountID))
		return nil, fmt.Errorf("failed to compute balance: %w", err)
	}

	return &domain.AccountBalance{
		AccountID:    accountID,
		CurrencyCode: account.CurrencyCode,
		Balance:      debits.Sub(credits),
		AsOf:         q.AsOf,
		RecordedAsOf: q.RecordedAsOf,
	}, nil
}

// History lists posted entries with start <= effective_at <= end.
func (s *balanceService) History(ctx context.Context, accountID string, q domain.HistoryQuery) (*domain.HistoryPage, error) {
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return nil, fmt.Errorf("%w: end must not be before start", apperrors.ErrValidation)
	}
	if q.NextToken != "" {
		if _, err := pagination.DecodeToken(q.NextToken); err != nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
		}
	}
	q.Limit = pagination.ClampLimit(q.Limit, defaultHistoryPageSize, maxHistoryPageSize)

	if _, err := s.accountRepo.FindAccountByID(ctx, accountID); err != nil {
		return nil, err
	}

	entries, next, err := s.ledgerRepo.ListPostedEntriesByAccount(ctx, accountID, q)
	if err != nil {
		s.LogError(ctx, err, "Failed to list account history", slog.String("account_id", accountID))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	return &domain.HistoryPage{Entries: entries, NextToken: next}, nil
}
