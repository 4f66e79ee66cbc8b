package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	"github.com/SscSPs/ledger_engine/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func (s *Store) SaveTransactionInTx(_ context.Context, tx pgx.Tx, txn domain.Transaction) error {
	t, err := s.active(tx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[txn.TransactionID]; exists {
		return fmt.Errorf("transaction %s: %w", txn.TransactionID, apperrors.ErrDuplicate)
	}
	s.transactions[txn.TransactionID] = cloneTransaction(txn)
	t.record(func() { delete(s.transactions, txn.TransactionID) })
	return nil
}

func (s *Store) FindTransactionByID(_ context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findTransactionLocked(transactionID)
}

func (s *Store) findTransactionLocked(transactionID string) (*domain.Transaction, error) {
	txn, ok := s.transactions[transactionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := cloneTransaction(txn)
	return &out, nil
}

func (s *Store) LockTransactionForUpdate(ctx context.Context, tx pgx.Tx, transactionID string) (*domain.Transaction, error) {
	return s.lockTransaction(tx, transactionID, true)
}

func (s *Store) LockTransactionForShare(ctx context.Context, tx pgx.Tx, transactionID string) (*domain.Transaction, error) {
	return s.lockTransaction(tx, transactionID, false)
}

func (s *Store) lockTransaction(tx pgx.Tx, transactionID string, exclusive bool) (*domain.Transaction, error) {
	t, err := s.active(tx)
	if err != nil {
		return nil, err
	}
	// Missing rows are not locked, as with SELECT ... FOR UPDATE.
	s.mu.RLock()
	_, ok := s.transactions[transactionID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	s.locks.acquire(t, txnKey(transactionID), exclusive)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findTransactionLocked(transactionID)
}

func (s *Store) UpdateTransactionInTx(_ context.Context, tx pgx.Tx, txn domain.Transaction) error {
	t, err := s.active(tx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.transactions[txn.TransactionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if prev.PostedAt != nil {
		return fmt.Errorf("%w: transaction %s is posted", apperrors.ErrImmutable, txn.TransactionID)
	}

	next := prev
	next.Description = txn.Description
	next.EffectiveAt = txn.EffectiveAt
	next.Metadata = txn.Metadata.Clone()
	s.transactions[txn.TransactionID] = next
	t.record(func() { s.transactions[prev.TransactionID] = prev })

	for _, id := range s.entriesByTxn[txn.TransactionID] {
		prevEntry := s.entries[id]
		e := prevEntry
		e.EffectiveAt = txn.EffectiveAt
		s.entries[id] = e
		t.record(func() { s.entries[prevEntry.EntryID] = prevEntry })
	}
	return nil
}

func (s *Store) MarkTransactionPostedInTx(_ context.Context, tx pgx.Tx, transactionID string, postedAt time.Time) error {
	t, err := s.active(tx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.transactions[transactionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if prev.PostedAt != nil {
		return fmt.Errorf("%w: transaction %s was posted concurrently", apperrors.ErrConflict, transactionID)
	}
	next := prev
	p := postedAt
	next.PostedAt = &p
	s.transactions[transactionID] = next
	t.record(func() { s.transactions[prev.TransactionID] = prev })
	return nil
}

func (s *Store) SaveEntryInTx(_ context.Context, tx pgx.Tx, entry domain.Entry) error {
	t, err := s.active(tx)
	if err != nil {
		return err
	}
	if err := checkAmountColumn(entry.Amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.transactions[entry.TransactionID]
	if !ok {
		return fmt.Errorf("%w: transaction %s", apperrors.ErrNotFound, entry.TransactionID)
	}
	if parent.PostedAt != nil {
		return fmt.Errorf("%w: transaction %s is posted", apperrors.ErrImmutable, entry.TransactionID)
	}
	if _, ok := s.accounts[entry.AccountID]; !ok {
		return fmt.Errorf("%w: account %s", apperrors.ErrNotFound, entry.AccountID)
	}
	if _, exists := s.entries[entry.EntryID]; exists {
		return fmt.Errorf("entry %s: %w", entry.EntryID, apperrors.ErrDuplicate)
	}
	if entry.ReversesEntryID != nil {
		target := *entry.ReversesEntryID
		if _, ok := s.entries[target]; !ok {
			return fmt.Errorf("%w: reversed entry %s", apperrors.ErrNotFound, target)
		}
		if _, taken := s.reversals[target]; taken {
			return fmt.Errorf("%w: entry %s", apperrors.ErrAlreadyReversed, target)
		}
		s.reversals[target] = entry.EntryID
		t.record(func() { delete(s.reversals, target) })
	}

	stored := cloneEntry(entry)
	stored.CurrencyCode = ""
	s.entries[entry.EntryID] = stored
	s.entriesByTxn[entry.TransactionID] = append(s.entriesByTxn[entry.TransactionID], entry.EntryID)
	s.entriesByAcc[entry.AccountID] = append(s.entriesByAcc[entry.AccountID], entry.EntryID)
	t.record(func() {
		delete(s.entries, entry.EntryID)
		s.entriesByTxn[entry.TransactionID] = without(s.entriesByTxn[entry.TransactionID], entry.EntryID)
		s.entriesByAcc[entry.AccountID] = without(s.entriesByAcc[entry.AccountID], entry.EntryID)
	})
	return nil
}

// UpdateEntryInTx checks the parent's posted_at under the same lock as the write.
func (s *Store) UpdateEntryInTx(_ context.Context, tx pgx.Tx, entry domain.Entry) error {
	t, err := s.active(tx)
	if err != nil {
		return err
	}
	if err := checkAmountColumn(entry.Amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.entries[entry.EntryID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if s.transactions[prev.TransactionID].PostedAt != nil {
		return fmt.Errorf("%w: entry %s belongs to a posted transaction", apperrors.ErrImmutable, entry.EntryID)
	}
	if _, ok := s.accounts[entry.AccountID]; !ok {
		return fmt.Errorf("%w: account %s", apperrors.ErrNotFound, entry.AccountID)
	}

	next := prev
	next.AccountID = entry.AccountID
	next.Amount = entry.Amount
	next.Direction = entry.Direction
	next.Description = entry.Description
	s.entries[entry.EntryID] = next
	if prev.AccountID != next.AccountID {
		s.entriesByAcc[prev.AccountID] = without(s.entriesByAcc[prev.AccountID], prev.EntryID)
		s.entriesByAcc[next.AccountID] = append(s.entriesByAcc[next.AccountID], next.EntryID)
	}
	t.record(func() {
		s.entries[prev.EntryID] = prev
		if prev.AccountID != next.AccountID {
			s.entriesByAcc[next.AccountID] = without(s.entriesByAcc[next.AccountID], prev.EntryID)
			s.entriesByAcc[prev.AccountID] = append(s.entriesByAcc[prev.AccountID], prev.EntryID)
		}
	})
	return nil
}

func (s *Store) FindEntryByID(_ context.Context, entryID string) (*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findEntryLocked(entryID)
}

func (s *Store) FindEntryByIDInTx(ctx context.Context, tx pgx.Tx, entryID string) (*domain.Entry, error) {
	if _, err := s.active(tx); err != nil {
		return nil, err
	}
	return s.FindEntryByID(ctx, entryID)
}

func (s *Store) FindEntriesByTransactionID(_ context.Context, transactionID string) ([]domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.entriesByTxn[transactionID]
	out := make([]domain.Entry, 0, len(ids))
	for _, id := range ids {
		e, err := s.findEntryLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *Store) FindEntriesByTransactionIDInTx(ctx context.Context, tx pgx.Tx, transactionID string) ([]domain.Entry, error) {
	if _, err := s.active(tx); err != nil {
		return nil, err
	}
	return s.FindEntriesByTransactionID(ctx, transactionID)
}

func (s *Store) FindReversalOfInTx(ctx context.Context, tx pgx.Tx, entryID string) (*domain.Entry, error) {
	if _, err := s.active(tx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	reversalID, ok := s.reversals[entryID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s.findEntryLocked(reversalID)
}

// findEntryLocked returns a copy of the entry with its account currency.
func (s *Store) findEntryLocked(entryID string) (*domain.Entry, error) {
	e, ok := s.entries[entryID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := cloneEntry(e)
	out.CurrencyCode = s.accounts[e.AccountID].CurrencyCode
	return &out, nil
}

func (s *Store) SumPostedEntries(_ context.Context, accountID string, q domain.BalanceQuery) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	debits, credits := decimal.Zero, decimal.Zero
	for _, id := range s.entriesByAcc[accountID] {
		e := s.entries[id]
		if !s.countsToward(e, q) {
			continue
		}
		if e.Direction == domain.Debit {
			debits = debits.Add(e.Amount)
		} else {
			credits = credits.Add(e.Amount)
		}
	}
	return debits, credits, nil
}

func (s *Store) countsToward(e domain.Entry, q domain.BalanceQuery) bool {
	parent := s.transactions[e.TransactionID]
	if parent.PostedAt == nil {
		return false
	}
	if q.AsOf != nil && e.EffectiveAt.After(*q.AsOf) {
		return false
	}
	if q.RecordedAsOf != nil && (e.RecordedAt.After(*q.RecordedAsOf) || parent.PostedAt.After(*q.RecordedAsOf)) {
		return false
	}
	return true
}

func (s *Store) ListPostedEntriesByAccount(_ context.Context, accountID string, q domain.HistoryQuery) ([]domain.Entry, *string, error) {
	var cursor *pagination.Cursor
	if q.NextToken != "" {
		c, err := pagination.DecodeToken(q.NextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
		}
		cursor = &c
	}

	s.mu.RLock()
	matched := make([]domain.Entry, 0)
	for _, id := range s.entriesByAcc[accountID] {
		e := s.entries[id]
		if s.transactions[e.TransactionID].PostedAt == nil {
			continue
		}
		if q.Start != nil && e.EffectiveAt.Before(*q.Start) {
			continue
		}
		if q.End != nil && e.EffectiveAt.After(*q.End) {
			continue
		}
		if cursor != nil && !cursor.After(e.EffectiveAt, e.RecordedAt, e.EntryID) {
			continue
		}
		out, _ := s.findEntryLocked(id)
		matched = append(matched, *out)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.EffectiveAt.Equal(b.EffectiveAt) {
			return a.EffectiveAt.Before(b.EffectiveAt)
		}
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.Before(b.RecordedAt)
		}
		return a.EntryID < b.EntryID
	})

	limit := q.Limit
	if limit <= 0 {
		limit = len(matched)
	}
	var next *string
	if len(matched) > limit {
		matched = matched[:limit]
		last := matched[limit-1]
		token := pagination.EncodeToken(pagination.Cursor{EffectiveAt: last.EffectiveAt, RecordedAt: last.RecordedAt, ID: last.EntryID})
		next = &token
	}
	return matched, next, nil
}

// checkAmountColumn rejects what the NUMERIC(19,4) CHECK (amount > 0)
// column would.
func checkAmountColumn(amount decimal.Decimal) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}
	return nil
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
