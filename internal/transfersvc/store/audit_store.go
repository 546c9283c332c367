package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
)

// AuditStore keeps the transfer log collection behind the admin
// transfer-log view. Writes are best effort; losing an audit record
// never fails a settlement.
type AuditStore struct {
	col *mongo.Collection
}

func NewAuditStore(db *mongo.Database) *AuditStore {
	return &AuditStore{col: db.Collection("transfer_logs")}
}

func (s *AuditStore) Record(ctx context.Context, entry *models.TransferLog) error {
	if _, err := s.col.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to record transfer log: %w", err)
	}
	return nil
}

func (s *AuditStore) ListRecent(ctx context.Context, limit int64) ([]*models.TransferLog, error) {
	opts := options.Find().SetSort(bson.M{"at": -1}).SetLimit(limit)
	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []*models.TransferLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode transfer logs: %w", err)
	}
	return logs, nil
}
