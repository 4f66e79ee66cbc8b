package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/ledger_engine/internal/core/ports/services"
	"github.com/SscSPs/ledger_engine/internal/dto"
	"github.com/SscSPs/ledger_engine/internal/utils/pagination"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	defaultAccountPageSize = 50
	maxAccountPageSize     = 500
)

// accountService implements the AccountSvcFacade interface
type accountService struct {
	BaseService
	accountRepo   portsrepo.AccountRepositoryWithTx
	ownerResolver portssvc.OwnerResolver
}

// AccountServiceOption is a functional option for configuring the account service
type AccountServiceOption func(*accountService)

// WithOwnerResolver makes CreateAccount reject owners the resolver does not know.
func WithOwnerResolver(resolver portssvc.OwnerResolver) AccountServiceOption {
	return func(s *accountService) {
		s.ownerResolver = resolver
	}
}

// WithAccountBase applies BaseService options (clock, metrics).
func WithAccountBase(opts ...func(*BaseService)) AccountServiceOption {
	return func(s *accountService) {
		for _, o := range opts {
			o(&s.BaseService)
		}
	}
}

// NewAccountService creates a new account service with the provided options
func NewAccountService(repo portsrepo.AccountRepositoryWithTx, options ...AccountServiceOption) portssvc.AccountSvcFacade {
	svc := &accountService{accountRepo: repo}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.AccountSvcFacade = (*accountService)(nil)

func (s *accountService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest, actor string) (*domain.Account, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	owner := domain.OwnerRef{Type: strings.TrimSpace(req.OwnerType), ID: strings.TrimSpace(req.OwnerID)}
	accountType := domain.AccountType(strings.ToLower(strings.TrimSpace(string(req.AccountType))))
	currency := domain.NormalizeCurrency(req.CurrencyCode)
	switch {
	case owner.IsZero():
		return nil, fmt.Errorf("%w: owner type and id are required", apperrors.ErrValidation)
	case accountType == "":
		return nil, fmt.Errorf("%w: account type is required", apperrors.ErrValidation)
	case currency == "":
		return nil, fmt.Errorf("%w: currency is required", apperrors.ErrValidation)
	}

	if s.ownerResolver != nil {
		exists, err := s.ownerResolver.OwnerExists(ctx, owner)
		if err != nil {
			s.LogError(ctx, err, "Owner lookup failed", slog.String("owner", owner.String()))
			return nil, fmt.Errorf("failed to resolve owner: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: owner %s does not exist", apperrors.ErrValidation, owner.String())
		}
	}

	now := s.now()
	account := domain.Account{
		AccountID:     uuid.NewString(),
		Owner:         owner,
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		AccountType:   accountType,
		CurrencyCode:  currency,
		Name:          strings.TrimSpace(req.Name),
		IsActive:      true,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor,
			LastUpdatedAt: now,
			LastUpdatedBy: actor,
		},
	}

	if err := s.accountRepo.SaveAccount(ctx, account); err != nil {
		s.LogError(ctx, err, "Failed to save account", slog.String("account_id", account.AccountID))
		return nil, err
	}

	s.LogInfo(ctx, "Account created successfully",
		slog.String("account_id", account.AccountID),
		slog.String("owner", owner.String()),
		slog.String("currency", currency))
	return &account, nil
}

func (s *accountService) GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find account by ID", slog.String("account_id", accountID))
		}
		return nil, err
	}
	return account, nil
}

func (s *accountService) FindAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	filter.Limit = pagination.ClampLimit(filter.Limit, defaultAccountPageSize, maxAccountPageSize)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.CurrencyCode = domain.NormalizeCurrency(filter.CurrencyCode)

	accounts, err := s.accountRepo.FindAccounts(ctx, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to find accounts")
		return nil, fmt.Errorf("failed to find accounts: %w", err)
	}
	if accounts == nil {
		return []domain.Account{}, nil
	}
	return accounts, nil
}

// UpdateAccount locks the account row exclusively, so a currency change
// cannot interleave with a posting that holds a shared lock on it.
func (s *accountService) UpdateAccount(ctx context.Context, accountID string, req dto.UpdateAccountRequest, actor string) (*domain.Account, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var updated domain.Account
	err := s.runInTx(ctx, s.accountRepo, func(tx pgx.Tx) error {
		account, err := s.accountRepo.FindAccountByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}

		if req.CurrencyCode != nil {
			currency := domain.NormalizeCurrency(*req.CurrencyCode)
			if currency != account.CurrencyCode {
				posted, err := s.accountRepo.HasPostedEntriesInTx(ctx, tx, accountID)
				if err != nil {
					return fmt.Errorf("failed to check posted entries: %w", err)
				}
				if posted {
					return fmt.Errorf("%w: currency of account %s cannot change after entries have posted", apperrors.ErrImmutable, accountID)
				}
				account.CurrencyCode = currency
			}
		}
		if req.Name != nil {
			account.Name = strings.TrimSpace(*req.Name)
		}
		if req.AccountNumber != nil {
			account.AccountNumber = strings.TrimSpace(*req.AccountNumber)
		}
		if req.IsActive != nil {
			account.IsActive = *req.IsActive
		}
		account.LastUpdatedAt = s.now()
		account.LastUpdatedBy = actor

		if err := s.accountRepo.UpdateAccountInTx(ctx, tx, *account); err != nil {
			return err
		}
		updated = *account
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) && !errors.Is(err, apperrors.ErrImmutable) {
			s.LogError(ctx, err, "Failed to update account", slog.String("account_id", accountID))
		}
		return nil, err
	}

	s.LogInfo(ctx, "Account updated", slog.String("account_id", accountID))
	return &updated, nil
}
