package services

import (
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/ledger_engine/internal/core/ports/services"
	"github.com/SscSPs/ledger_engine/internal/platform/metrics"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// reg and ownerResolver may be nil.
func NewServiceContainer(repos portsrepo.RepositoryProvider, reg *metrics.Registry, ownerResolver portssvc.OwnerResolver) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	audit := NewAuditService(repos.AuditWriter, WithMetrics(reg))

	accountOpts := []AccountServiceOption{WithAccountBase(WithMetrics(reg))}
	if ownerResolver != nil {
		accountOpts = append(accountOpts, WithOwnerResolver(ownerResolver))
	}
	container.Account = NewAccountService(repos.AccountRepo, accountOpts...)

	container.Ledger = NewLedgerService(
		repos.AccountRepo,
		repos.LedgerRepo,
		WithLedgerAudit(audit),
		WithLedgerBase(WithMetrics(reg)),
	)
	container.Balance = NewBalanceService(repos.AccountRepo, repos.LedgerRepo, WithMetrics(reg))
	container.Reversal = NewReversalService(repos.LedgerRepo, audit, WithMetrics(reg))

	return container
}
