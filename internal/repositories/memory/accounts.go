package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

func (s *Store) SaveAccount(_ context.Context, account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.AccountID]; exists {
		return fmt.Errorf("account %s: %w", account.AccountID, apperrors.ErrDuplicate)
	}
	s.accounts[account.AccountID] = account
	return nil
}

func (s *Store) FindAccountByID(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &account, nil
}

func (s *Store) FindAccountsByIDs(_ context.Context, accountIDs []string) (map[string]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Account, len(accountIDs))
	for _, id := range accountIDs {
		if account, ok := s.accounts[id]; ok {
			out[id] = account
		}
	}
	return out, nil
}

func (s *Store) FindAccounts(_ context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	s.mu.RLock()
	matched := make([]domain.Account, 0)
	for _, a := range s.accounts {
		if filter.Owner != nil && a.Owner != *filter.Owner {
			continue
		}
		if filter.AccountType != "" && a.AccountType != filter.AccountType {
			continue
		}
		if filter.CurrencyCode != "" && a.CurrencyCode != filter.CurrencyCode {
			continue
		}
		if filter.IsActive != nil && a.IsActive != *filter.IsActive {
			continue
		}
		matched = append(matched, a)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].AccountID < matched[j].AccountID
	})

	if filter.Offset >= len(matched) {
		return []domain.Account{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *Store) FindAccountByIDForUpdate(_ context.Context, tx pgx.Tx, accountID string) (*domain.Account, error) {
	t, err := s.active(tx)
	if err != nil {
		return nil, err
	}
	s.locks.acquire(t, accKey(accountID), true)

	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &account, nil
}

// FindAccountsByIDsForShare locks in ascending ID order so that two
// transactions touching the same accounts cannot deadlock.
func (s *Store) FindAccountsByIDsForShare(_ context.Context, tx pgx.Tx, accountIDs []string) (map[string]domain.Account, error) {
	t, err := s.active(tx)
	if err != nil {
		return nil, err
	}
	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		s.locks.acquire(t, accKey(id), false)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Account, len(ids))
	for _, id := range ids {
		if account, ok := s.accounts[id]; ok {
			out[id] = account
		}
	}
	return out, nil
}

func (s *Store) UpdateAccountInTx(_ context.Context, tx pgx.Tx, account domain.Account) error {
	t, err := s.active(tx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.accounts[account.AccountID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if prev.CurrencyCode != account.CurrencyCode && s.hasPostedEntriesLocked(account.AccountID) {
		return fmt.Errorf("%w: currency of account %s is fixed by posted entries", apperrors.ErrImmutable, account.AccountID)
	}
	// Identity and ownership are not updatable.
	account.Owner = prev.Owner
	account.AccountType = prev.AccountType
	account.CreatedAt = prev.CreatedAt
	account.CreatedBy = prev.CreatedBy

	s.accounts[account.AccountID] = account
	t.record(func() { s.accounts[prev.AccountID] = prev })
	return nil
}

func (s *Store) HasPostedEntriesInTx(_ context.Context, tx pgx.Tx, accountID string) (bool, error) {
	if _, err := s.active(tx); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPostedEntriesLocked(accountID), nil
}

func (s *Store) hasPostedEntriesLocked(accountID string) bool {
	for _, id := range s.entriesByAcc[accountID] {
		if s.transactions[s.entries[id].TransactionID].PostedAt != nil {
			return true
		}
	}
	return false
}
