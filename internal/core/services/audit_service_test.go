package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	"github.com/SscSPs/ledger_engine/internal/core/services"
	"github.com/SscSPs/ledger_engine/internal/platform/metrics"
	"github.com/SscSPs/ledger_engine/internal/repositories/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransaction() domain.Transaction {
	return domain.Transaction{
		TransactionID: "txn-1",
		Entries: []domain.Entry{
			{EntryID: "e-1", AccountID: "a-1", Amount: decimal.NewFromInt(10), Direction: domain.Debit},
			{EntryID: "e-2", AccountID: "a-2", Amount: decimal.NewFromInt(10), Direction: domain.Credit},
		},
	}
}

func TestAuditChecksum(t *testing.T) {
	at := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	event := services.BuildAuditEvent(domain.AuditActionPosted, sampleTransaction(), "alice", "", at)
	require.Len(t, event.Entries, 2)

	sum, err := services.ComputeAuditChecksum(event)
	require.NoError(t, err)
	assert.Len(t, sum, 64)

	event.Checksum = sum
	assert.True(t, services.VerifyAuditChecksum(event))

	again, err := services.ComputeAuditChecksum(event)
	require.NoError(t, err)
	assert.Equal(t, sum, again, "checksum ignores the stored checksum")

	event.Entries[0].Amount = decimal.NewFromInt(11)
	assert.False(t, services.VerifyAuditChecksum(event))
}

func TestAuditEmitFailureIsCounted(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	log := memory.NewAuditLog()
	log.FailWith(assert.AnError)
	svc := services.NewAuditService(log, services.WithMetrics(reg))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Emit(ctx, domain.AuditActionReversed, sampleTransaction(), "bob", "typo")

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.AuditFailures.WithLabelValues(domain.AuditActionReversed)))

	log.FailWith(nil)
	svc.Emit(ctx, domain.AuditActionPosted, sampleTransaction(), "bob", "")
	events := log.Events()
	require.Len(t, events, 1, "cancelled request context does not stop the write")
	assert.Equal(t, "bob", events[0].Actor)
	assert.True(t, services.VerifyAuditChecksum(events[0]))
}
