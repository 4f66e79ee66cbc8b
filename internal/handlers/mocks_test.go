package handlers_test

import (
	"context"
	"time"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portssvc "github.com/SscSPs/ledger_engine/internal/core/ports/services"
	"github.com/SscSPs/ledger_engine/internal/dto"
	"github.com/stretchr/testify/mock"
)

// --- Mock AccountService ---
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest, actor string) (*domain.Account, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockAccountService) UpdateAccount(ctx context.Context, accountID string, req dto.UpdateAccountRequest, actor string) (*domain.Account, error) {
	args := m.Called(ctx, accountID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockAccountService) GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockAccountService) FindAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

var _ portssvc.AccountSvcFacade = (*MockAccountService)(nil)

// --- Mock BalanceService ---
type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) Balance(ctx context.Context, accountID string, q domain.BalanceQuery) (*domain.AccountBalance, error) {
	args := m.Called(ctx, accountID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountBalance), args.Error(1)
}
func (m *MockBalanceService) History(ctx context.Context, accountID string, q domain.HistoryQuery) (*domain.HistoryPage, error) {
	args := m.Called(ctx, accountID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HistoryPage), args.Error(1)
}

var _ portssvc.BalanceSvc = (*MockBalanceService)(nil)

// --- Mock LedgerService ---
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) txnResult(args mock.Arguments) (*domain.Transaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockLedgerService) entryResult(args mock.Arguments) (*domain.Entry, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Entry), args.Error(1)
}
func (m *MockLedgerService) OpenTransaction(ctx context.Context, req dto.OpenTransactionRequest, actor string) (*domain.Transaction, error) {
	return m.txnResult(m.Called(ctx, req, actor))
}
func (m *MockLedgerService) UpdateTransaction(ctx context.Context, transactionID string, req dto.UpdateTransactionRequest, actor string) (*domain.Transaction, error) {
	return m.txnResult(m.Called(ctx, transactionID, req, actor))
}
func (m *MockLedgerService) AddEntry(ctx context.Context, transactionID string, req dto.AddEntryRequest, actor string) (*domain.Entry, error) {
	return m.entryResult(m.Called(ctx, transactionID, req, actor))
}
func (m *MockLedgerService) UpdateEntry(ctx context.Context, entryID string, req dto.UpdateEntryRequest, actor string) (*domain.Entry, error) {
	return m.entryResult(m.Called(ctx, entryID, req, actor))
}
func (m *MockLedgerService) Post(ctx context.Context, transactionID string, actor string) (*domain.Transaction, error) {
	return m.txnResult(m.Called(ctx, transactionID, actor))
}
func (m *MockLedgerService) RecordTransaction(ctx context.Context, req dto.RecordTransactionRequest, actor string) (*domain.Transaction, error) {
	return m.txnResult(m.Called(ctx, req, actor))
}
func (m *MockLedgerService) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return m.txnResult(m.Called(ctx, transactionID))
}
func (m *MockLedgerService) EntriesFor(ctx context.Context, transactionID string) ([]domain.Entry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Entry), args.Error(1)
}

var _ portssvc.LedgerSvcFacade = (*MockLedgerService)(nil)

// --- Mock ReversalService ---
type MockReversalService struct {
	mock.Mock
}

func (m *MockReversalService) Reverse(ctx context.Context, entryID string, reason string, effectiveAt *time.Time, actor string) (*domain.Transaction, error) {
	args := m.Called(ctx, entryID, reason, effectiveAt, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockReversalService) ReverseTransaction(ctx context.Context, transactionID string, reason string, effectiveAt *time.Time, actor string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID, reason, effectiveAt, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

var _ portssvc.ReversalSvc = (*MockReversalService)(nil)
