// Package memory is an in-process implementation of the ledger repositories.
// It mirrors the PostgreSQL semantics the services rely on: per-row shared
// and exclusive locks held until commit or rollback, rejection of writes
// under posted transactions, and at most one reversal per entry.
//
// Writes are applied immediately and undone on rollback, so concurrent
// readers can observe uncommitted data.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
)

// Store holds accounts, transactions and entries in maps.
type Store struct {
	mu sync.RWMutex

	accounts     map[string]domain.Account
	transactions map[string]domain.Transaction
	entries      map[string]domain.Entry
	entriesByTxn map[string][]string
	entriesByAcc map[string][]string
	reversals    map[string]string // reversed entry ID -> reversing entry ID

	locks *lockManager
}

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts:     make(map[string]domain.Account),
		transactions: make(map[string]domain.Transaction),
		entries:      make(map[string]domain.Entry),
		entriesByTxn: make(map[string][]string),
		entriesByAcc: make(map[string][]string),
		reversals:    make(map[string]string),
		locks:        newLockManager(),
	}
}

var (
	_ portsrepo.AccountRepositoryWithTx = (*Store)(nil)
	_ portsrepo.LedgerRepositoryWithTx  = (*Store)(nil)
)

// Tx is the store's unit of work. The embedded pgx.Tx is nil; the store
// never calls it.
type Tx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

var errTxDone = errors.New("memory: transaction already closed")

func (s *Store) Begin(_ context.Context) (pgx.Tx, error) {
	return &Tx{store: s}, nil
}

func (s *Store) Commit(_ context.Context, tx pgx.Tx) error {
	t, err := s.own(tx)
	if err != nil {
		return err
	}
	if t.done {
		return errTxDone
	}
	t.done = true
	t.undo = nil
	s.locks.releaseAll(t)
	return nil
}

// Rollback undoes the transaction's writes in reverse order. Rolling back a
// finished transaction is a no-op.
func (s *Store) Rollback(_ context.Context, tx pgx.Tx) error {
	t, err := s.own(tx)
	if err != nil {
		return err
	}
	if t.done {
		return nil
	}
	t.done = true
	s.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	s.mu.Unlock()
	t.undo = nil
	s.locks.releaseAll(t)
	return nil
}

func (s *Store) own(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, fmt.Errorf("memory: foreign transaction %T", tx)
	}
	return t, nil
}

// active returns the store transaction, failing once it is closed.
func (s *Store) active(tx pgx.Tx) (*Tx, error) {
	t, err := s.own(tx)
	if err != nil {
		return nil, err
	}
	if t.done {
		return nil, errTxDone
	}
	return t, nil
}

// record registers an undo step. Callers hold s.mu.
func (t *Tx) record(fn func()) {
	t.undo = append(t.undo, fn)
}

func cloneEntry(e domain.Entry) domain.Entry {
	if e.ReversesEntryID != nil {
		id := *e.ReversesEntryID
		e.ReversesEntryID = &id
	}
	if e.Metadata != nil {
		e.Metadata = e.Metadata.Clone()
	}
	return e
}

func cloneTransaction(t domain.Transaction) domain.Transaction {
	if t.PostedAt != nil {
		p := *t.PostedAt
		t.PostedAt = &p
	}
	t.Metadata = t.Metadata.Clone()
	t.Entries = nil
	return t
}
