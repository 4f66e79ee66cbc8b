// Package mongodb stores audit events in a MongoDB collection.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_engine/internal/core/ports/repositories"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type auditEntryDocument struct {
	EntryID   string `bson:"entry_id"`
	AccountID string `bson:"account_id"`
	Amount    string `bson:"amount"`
	Direction string `bson:"direction"`
}

// auditEventDocument keeps amounts as strings so no precision is lost to
// BSON doubles.
type auditEventDocument struct {
	ID            string               `bson:"_id"`
	Action        string               `bson:"action"`
	TransactionID string               `bson:"transaction_id"`
	Entries       []auditEntryDocument `bson:"entries"`
	Actor         string               `bson:"actor,omitempty"`
	Reason        string               `bson:"reason,omitempty"`
	OccurredAt    time.Time            `bson:"occurred_at"`
	Checksum      string               `bson:"checksum"`
}

func toAuditDocument(e domain.AuditEvent) auditEventDocument {
	entries := make([]auditEntryDocument, len(e.Entries))
	for i, leg := range e.Entries {
		entries[i] = auditEntryDocument{
			EntryID:   leg.EntryID,
			AccountID: leg.AccountID,
			Amount:    leg.Amount.String(),
			Direction: string(leg.Direction),
		}
	}
	return auditEventDocument{
		ID:            e.EventID,
		Action:        e.Action,
		TransactionID: e.TransactionID,
		Entries:       entries,
		Actor:         e.Actor,
		Reason:        e.Reason,
		OccurredAt:    e.OccurredAt,
		Checksum:      e.Checksum,
	}
}

// AuditRepository writes one document per audit event.
type AuditRepository struct {
	coll *mongo.Collection
}

// NewAuditRepository uses the named collection of db.
func NewAuditRepository(db *mongo.Database, collection string) *AuditRepository {
	return &AuditRepository{coll: db.Collection(collection)}
}

var _ portsrepo.AuditEventWriter = (*AuditRepository)(nil)

// EnsureIndexes creates the lookup indexes on transaction_id and occurred_at.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "transaction_id", Value: 1}}},
		{Keys: bson.D{{Key: "occurred_at", Value: -1}}, Options: options.Index().SetName("occurred_at_desc")},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

func (r *AuditRepository) WriteAuditEvent(ctx context.Context, event domain.AuditEvent) error {
	if _, err := r.coll.InsertOne(ctx, toAuditDocument(event)); err != nil {
		return fmt.Errorf("failed to insert audit event %s: %w", event.EventID, err)
	}
	return nil
}
