package memory

import (
	"context"
	"sync"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
)

// AuditLog keeps audit events in memory.
type AuditLog struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

var _ portsrepo.AuditEventWriter = (*AuditLog)(nil)

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (a *AuditLog) WriteAuditEvent(_ context.Context, event domain.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, event)
	return nil
}

// FailWith makes subsequent writes return err. Pass nil to recover.
func (a *AuditLog) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// Events returns a snapshot of written events in order.
func (a *AuditLog) Events() []domain.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEvent(nil), a.events...)
}
