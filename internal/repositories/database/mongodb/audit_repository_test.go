package mongodb

import (
	"testing"
	"time"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestAuditDocumentRoundTrip(t *testing.T) {
	at := time.Date(2024, 4, 4, 10, 0, 0, 0, time.UTC)
	event := domain.AuditEvent{
		EventID:       "evt-1",
		Action:        domain.AuditActionReversed,
		TransactionID: "txn-1",
		Entries: []domain.AuditEntry{
			{EntryID: "e-1", AccountID: "a-1", Amount: decimal.RequireFromString("1234567890.1234"), Direction: domain.Credit},
		},
		Reason:     "refund",
		OccurredAt: at,
		Checksum:   "abc",
	}

	raw, err := bson.Marshal(toAuditDocument(event))
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, "evt-1", doc["_id"])
	assert.Equal(t, "refund", doc["reason"])
	assert.NotContains(t, doc, "actor", "empty actor is omitted")

	var back auditEventDocument
	require.NoError(t, bson.Unmarshal(raw, &back))
	require.Len(t, back.Entries, 1)
	assert.Equal(t, "1234567890.1234", back.Entries[0].Amount)
	assert.True(t, back.OccurredAt.Equal(at))
}
