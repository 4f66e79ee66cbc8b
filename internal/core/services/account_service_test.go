package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	"github.com/SscSPs/ledger_engine/internal/core/services"
	"github.com/SscSPs/ledger_engine/internal/dto"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock AccountRepository ---
type MockAccountRepository struct {
	mock.Mock
}

var _ portsrepo.AccountRepositoryWithTx = (*MockAccountRepository)(nil)

func (m *MockAccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	args := m.Called(ctx, accountIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Account), args.Error(1)
}

func (m *MockAccountRepository) FindAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

func (m *MockAccountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) FindAccountByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, tx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) FindAccountsByIDsForShare(ctx context.Context, tx pgx.Tx, accountIDs []string) (map[string]domain.Account, error) {
	args := m.Called(ctx, tx, accountIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateAccountInTx(ctx context.Context, tx pgx.Tx, account domain.Account) error {
	args := m.Called(ctx, tx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) HasPostedEntriesInTx(ctx context.Context, tx pgx.Tx, accountID string) (bool, error) {
	args := m.Called(ctx, tx, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

func (m *MockAccountRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockAccountRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

// fakeTx stands in for a pgx transaction; the mocks never call it.
type fakeTx struct {
	pgx.Tx
}

type MockOwnerResolver struct {
	mock.Mock
}

func (m *MockOwnerResolver) OwnerExists(ctx context.Context, owner domain.OwnerRef) (bool, error) {
	args := m.Called(ctx, owner)
	return args.Bool(0), args.Error(1)
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 8, 30, 0, 123456789, time.UTC)
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	validReq := dto.CreateAccountRequest{
		OwnerType:    "customer",
		OwnerID:      "c-42",
		AccountType:  "Asset",
		CurrencyCode: "usd",
		Name:         " Cash ",
	}

	t.Run("success", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := services.NewAccountService(repo, services.WithAccountBase(services.WithClock(fixedClock)))

		repo.On("SaveAccount", ctx, mock.MatchedBy(func(a domain.Account) bool {
			return a.CurrencyCode == "USD" && a.AccountType == domain.Asset && a.Name == "Cash" && a.IsActive &&
				a.Owner == domain.OwnerRef{Type: "customer", ID: "c-42"}
		})).Return(nil).Once()

		acc, err := svc.CreateAccount(ctx, validReq, "creator")
		require.NoError(t, err)
		assert.NotEmpty(t, acc.AccountID)
		assert.Equal(t, "creator", acc.CreatedBy)
		assert.Equal(t, fixedClock().Truncate(time.Microsecond), acc.CreatedAt)
		repo.AssertExpectations(t)
	})

	t.Run("invalid currency", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := services.NewAccountService(repo)
		req := validReq
		req.CurrencyCode = "US1"

		_, err := svc.CreateAccount(ctx, req, "creator")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		repo.AssertNotCalled(t, "SaveAccount", mock.Anything, mock.Anything)
	})

	t.Run("unknown owner", func(t *testing.T) {
		repo := new(MockAccountRepository)
		owners := new(MockOwnerResolver)
		svc := services.NewAccountService(repo, services.WithOwnerResolver(owners))
		owners.On("OwnerExists", ctx, domain.OwnerRef{Type: "customer", ID: "c-42"}).Return(false, nil).Once()

		_, err := svc.CreateAccount(ctx, validReq, "creator")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		owners.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := services.NewAccountService(repo)
		repo.On("SaveAccount", ctx, mock.Anything).Return(errors.New("db down")).Once()

		_, err := svc.CreateAccount(ctx, validReq, "creator")
		assert.EqualError(t, err, "db down")
	})
}

func TestFindAccountsClampsLimit(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	svc := services.NewAccountService(repo)

	repo.On("FindAccounts", ctx, domain.AccountFilter{CurrencyCode: "EUR", Limit: 500}).Return(nil, nil).Once()

	accounts, err := svc.FindAccounts(ctx, domain.AccountFilter{CurrencyCode: "eur", Limit: 10000, Offset: -3})
	require.NoError(t, err)
	assert.NotNil(t, accounts)
	repo.AssertExpectations(t)
}

func TestUpdateAccount(t *testing.T) {
	ctx := context.Background()
	tx := &fakeTx{}
	current := func() *domain.Account {
		return &domain.Account{AccountID: "acc-1", CurrencyCode: "USD", Name: "Cash", IsActive: true}
	}

	t.Run("rename commits", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := services.NewAccountService(repo)
		name := "Petty cash"

		repo.On("Begin", ctx).Return(tx, nil).Once()
		repo.On("FindAccountByIDForUpdate", ctx, tx, "acc-1").Return(current(), nil).Once()
		repo.On("UpdateAccountInTx", ctx, tx, mock.MatchedBy(func(a domain.Account) bool {
			return a.Name == "Petty cash" && a.LastUpdatedBy == "editor"
		})).Return(nil).Once()
		repo.On("Commit", ctx, tx).Return(nil).Once()

		acc, err := svc.UpdateAccount(ctx, "acc-1", dto.UpdateAccountRequest{Name: &name}, "editor")
		require.NoError(t, err)
		assert.Equal(t, "Petty cash", acc.Name)
		repo.AssertExpectations(t)
	})

	t.Run("currency change after posting rolls back", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := services.NewAccountService(repo)
		eur := "EUR"

		repo.On("Begin", ctx).Return(tx, nil).Once()
		repo.On("FindAccountByIDForUpdate", ctx, tx, "acc-1").Return(current(), nil).Once()
		repo.On("HasPostedEntriesInTx", ctx, tx, "acc-1").Return(true, nil).Once()
		repo.On("Rollback", ctx, tx).Return(nil).Once()

		_, err := svc.UpdateAccount(ctx, "acc-1", dto.UpdateAccountRequest{CurrencyCode: &eur}, "editor")
		assert.ErrorIs(t, err, apperrors.ErrImmutable)
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "UpdateAccountInTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := services.NewAccountService(repo)
		name := "x"

		repo.On("Begin", ctx).Return(tx, nil).Once()
		repo.On("FindAccountByIDForUpdate", ctx, tx, "missing").Return(nil, apperrors.ErrNotFound).Once()
		repo.On("Rollback", ctx, tx).Return(nil).Once()

		_, err := svc.UpdateAccount(ctx, "missing", dto.UpdateAccountRequest{Name: &name}, "editor")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
