package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	"github.com/SscSPs/ledger_engine/internal/repositories/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, s *memory.Store, currency string) domain.Account {
	t.Helper()
	acc := domain.Account{
		AccountID:    uuid.NewString(),
		Owner:        domain.OwnerRef{Type: "user", ID: "u1"},
		AccountType:  domain.Asset,
		CurrencyCode: currency,
		IsActive:     true,
		AuditFields:  domain.AuditFields{CreatedAt: t0},
	}
	require.NoError(t, s.SaveAccount(context.Background(), acc))
	return acc
}

func draft(t *testing.T, s *memory.Store) domain.Transaction {
	t.Helper()
	ctx := context.Background()
	txn := domain.Transaction{TransactionID: uuid.NewString(), EffectiveAt: t0, RecordedAt: t0}
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SaveTransactionInTx(ctx, tx, txn))
	require.NoError(t, s.Commit(ctx, tx))
	return txn
}

func entry(txnID, accountID string, amount string, d domain.Direction) domain.Entry {
	return domain.Entry{
		EntryID:       uuid.NewString(),
		TransactionID: txnID,
		AccountID:     accountID,
		Amount:        decimal.RequireFromString(amount),
		Direction:     d,
		EffectiveAt:   t0,
		RecordedAt:    t0,
	}
}

func TestRollbackUndoesWrites(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acc := seedAccount(t, s, "USD")
	txn := draft(t, s)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	e := entry(txn.TransactionID, acc.AccountID, "10", domain.Debit)
	require.NoError(t, s.SaveEntryInTx(ctx, tx, e))
	require.NoError(t, s.MarkTransactionPostedInTx(ctx, tx, txn.TransactionID, t0))
	require.NoError(t, s.Rollback(ctx, tx))

	got, err := s.FindTransactionByID(ctx, txn.TransactionID)
	require.NoError(t, err)
	assert.Nil(t, got.PostedAt)
	entries, err := s.FindEntriesByTransactionID(ctx, txn.TransactionID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Rollback after close is a no-op, writes on a closed tx fail.
	assert.NoError(t, s.Rollback(ctx, tx))
	assert.Error(t, s.SaveEntryInTx(ctx, tx, e))
}

func TestSaveEntryRejectsPostedParent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acc := seedAccount(t, s, "USD")
	txn := draft(t, s)

	tx, _ := s.Begin(ctx)
	require.NoError(t, s.MarkTransactionPostedInTx(ctx, tx, txn.TransactionID, t0))
	require.NoError(t, s.Commit(ctx, tx))

	tx, _ = s.Begin(ctx)
	defer s.Rollback(ctx, tx)
	err := s.SaveEntryInTx(ctx, tx, entry(txn.TransactionID, acc.AccountID, "1", domain.Debit))
	assert.ErrorIs(t, err, apperrors.ErrImmutable)

	err = s.MarkTransactionPostedInTx(ctx, tx, txn.TransactionID, t0)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestEntryAmountMustFitColumn(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acc := seedAccount(t, s, "USD")
	txn := draft(t, s)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer s.Rollback(ctx, tx)

	err = s.SaveEntryInTx(ctx, tx, entry(txn.TransactionID, acc.AccountID, "1000000000000000", domain.Debit))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	ok := entry(txn.TransactionID, acc.AccountID, "999999999999999.9999", domain.Debit)
	require.NoError(t, s.SaveEntryInTx(ctx, tx, ok))

	ok.Amount = decimal.RequireFromString("10000000000000000")
	assert.ErrorIs(t, s.UpdateEntryInTx(ctx, tx, ok), apperrors.ErrValidation)
}

func TestOneReversalPerEntry(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acc := seedAccount(t, s, "USD")
	orig := draft(t, s)
	e := entry(orig.TransactionID, acc.AccountID, "5", domain.Debit)

	tx, _ := s.Begin(ctx)
	require.NoError(t, s.SaveEntryInTx(ctx, tx, e))
	require.NoError(t, s.Commit(ctx, tx))

	first, second := draft(t, s), draft(t, s)
	tx, _ = s.Begin(ctx)
	rev := entry(first.TransactionID, acc.AccountID, "5", domain.Credit)
	rev.ReversesEntryID = &e.EntryID
	require.NoError(t, s.SaveEntryInTx(ctx, tx, rev))
	require.NoError(t, s.Commit(ctx, tx))

	tx, _ = s.Begin(ctx)
	defer s.Rollback(ctx, tx)
	dup := entry(second.TransactionID, acc.AccountID, "5", domain.Credit)
	dup.ReversesEntryID = &e.EntryID
	assert.ErrorIs(t, s.SaveEntryInTx(ctx, tx, dup), apperrors.ErrAlreadyReversed)

	found, err := s.FindReversalOfInTx(ctx, tx, e.EntryID)
	require.NoError(t, err)
	assert.Equal(t, rev.EntryID, found.EntryID)
	_, err = s.FindReversalOfInTx(ctx, tx, rev.EntryID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExclusiveLockWaitsForShared(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	txn := draft(t, s)

	reader, _ := s.Begin(ctx)
	_, err := s.LockTransactionForShare(ctx, reader, txn.TransactionID)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		writer, _ := s.Begin(ctx)
		_, _ = s.LockTransactionForUpdate(ctx, writer, txn.TransactionID)
		close(acquired)
		_ = s.Commit(ctx, writer)
	}()

	select {
	case <-acquired:
		t.Fatal("exclusive lock granted while a shared lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, s.Commit(ctx, reader))
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("exclusive lock not granted after release")
	}
}

func TestSumAndHistoryOnlySeePostedEntries(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	cash := seedAccount(t, s, "USD")
	equity := seedAccount(t, s, "USD")

	posted := draft(t, s)
	pending := draft(t, s)
	tx, _ := s.Begin(ctx)
	for _, e := range []domain.Entry{
		entry(posted.TransactionID, cash.AccountID, "30", domain.Debit),
		entry(posted.TransactionID, equity.AccountID, "30", domain.Credit),
		entry(pending.TransactionID, cash.AccountID, "99", domain.Debit),
	} {
		require.NoError(t, s.SaveEntryInTx(ctx, tx, e))
	}
	require.NoError(t, s.MarkTransactionPostedInTx(ctx, tx, posted.TransactionID, t0.Add(time.Hour)))
	require.NoError(t, s.Commit(ctx, tx))

	debits, credits, err := s.SumPostedEntries(ctx, cash.AccountID, domain.BalanceQuery{})
	require.NoError(t, err)
	assert.True(t, debits.Equal(decimal.NewFromInt(30)))
	assert.True(t, credits.IsZero())

	before := t0.Add(time.Minute)
	debits, _, err = s.SumPostedEntries(ctx, cash.AccountID, domain.BalanceQuery{RecordedAsOf: &before})
	require.NoError(t, err)
	assert.True(t, debits.IsZero(), "posted after the recorded-as-of cut")

	entries, next, err := s.ListPostedEntriesByAccount(ctx, cash.AccountID, domain.HistoryQuery{Limit: 10})
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, entries, 1)
	assert.Equal(t, "USD", entries[0].CurrencyCode)
}

func TestHistoryPagination(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	cash := seedAccount(t, s, "EUR")
	txn := draft(t, s)

	tx, _ := s.Begin(ctx)
	for i := 0; i < 5; i++ {
		e := entry(txn.TransactionID, cash.AccountID, "1", domain.Debit)
		e.RecordedAt = t0.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.SaveEntryInTx(ctx, tx, e))
	}
	require.NoError(t, s.MarkTransactionPostedInTx(ctx, tx, txn.TransactionID, t0))
	require.NoError(t, s.Commit(ctx, tx))

	var seen []string
	q := domain.HistoryQuery{Limit: 2}
	for {
		page, next, err := s.ListPostedEntriesByAccount(ctx, cash.AccountID, q)
		require.NoError(t, err)
		for _, e := range page {
			seen = append(seen, e.EntryID)
		}
		if next == nil {
			break
		}
		q.NextToken = *next
	}
	assert.Len(t, seen, 5)

	_, _, err := s.ListPostedEntriesByAccount(ctx, cash.AccountID, domain.HistoryQuery{NextToken: "%%%"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateAccountCurrencyFixedAfterPosting(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acc := seedAccount(t, s, "USD")
	txn := draft(t, s)

	tx, _ := s.Begin(ctx)
	require.NoError(t, s.SaveEntryInTx(ctx, tx, entry(txn.TransactionID, acc.AccountID, "1", domain.Debit)))
	require.NoError(t, s.MarkTransactionPostedInTx(ctx, tx, txn.TransactionID, t0))
	require.NoError(t, s.Commit(ctx, tx))

	tx, _ = s.Begin(ctx)
	defer s.Rollback(ctx, tx)
	locked, err := s.FindAccountByIDForUpdate(ctx, tx, acc.AccountID)
	require.NoError(t, err)
	locked.CurrencyCode = "EUR"
	assert.ErrorIs(t, s.UpdateAccountInTx(ctx, tx, *locked), apperrors.ErrImmutable)

	posted, err := s.HasPostedEntriesInTx(ctx, tx, acc.AccountID)
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestFindAccountsFilters(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	usd := seedAccount(t, s, "USD")
	seedAccount(t, s, "EUR")

	got, err := s.FindAccounts(ctx, domain.AccountFilter{CurrencyCode: "USD", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, usd.AccountID, got[0].AccountID)

	got, err = s.FindAccounts(ctx, domain.AccountFilter{Owner: &domain.OwnerRef{Type: "user", ID: "u1"}, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = s.FindAccountByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, s.SaveAccount(ctx, usd), apperrors.ErrDuplicate)
}

func TestAuditLog(t *testing.T) {
	log := memory.NewAuditLog()
	require.NoError(t, log.WriteAuditEvent(context.Background(), domain.AuditEvent{EventID: "a"}))
	log.FailWith(assert.AnError)
	assert.ErrorIs(t, log.WriteAuditEvent(context.Background(), domain.AuditEvent{EventID: "b"}), assert.AnError)
	assert.Len(t, log.Events(), 1)
}
