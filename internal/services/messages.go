package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/connectpro-relay/internal/database"
	"github.com/AnshRaj112/connectpro-relay/internal/models"
)

const messageCollection = "relay_messages"

// MessageService is the durable message log in MongoDB.
type MessageService struct{}

func NewMessageService() *MessageService { return &MessageService{} }

func messageColl() *mongo.Collection {
	return database.DB.Collection(messageCollection)
}

// EnsureMessageIndexes creates the indexes the log queries depend on.
// Safe to call on every startup.
func EnsureMessageIndexes(ctx context.Context) error {
	_, err := messageColl().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}
	return nil
}

func (s *MessageService) Append(ctx context.Context, rec *models.MessageRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if _, err := messageColl().InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("append message record: %w", err)
	}
	return nil
}

// ForOwner returns the owner's records in original insertion order.
func (s *MessageService) ForOwner(ctx context.Context, ownerID int64) ([]models.MessageRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := messageColl().Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages for owner %d: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	var records []models.MessageRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode messages for owner %d: %w", ownerID, err)
	}
	return records, nil
}

// CountConversations counts distinct (owner, sender) pairs in the log.
func (s *MessageService) CountConversations(ctx context.Context) (int64, error) {
	cursor, err := messageColl().Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{{Key: "_id", Value: bson.D{
			{Key: "owner_id", Value: "$owner_id"},
			{Key: "sender_id", Value: "$sender_id"},
		}}}}},
		bson.D{{Key: "$count", Value: "n"}},
	})
	if err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []struct {
		N int64 `bson:"n"`
	}
	if err := cursor.All(ctx, &out); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].N, nil
}

// DeleteOlderThan drops records past the retention horizon and reports
// how many were removed.
func (s *MessageService) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := messageColl().DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("delete old message records: %w", err)
	}
	return res.DeletedCount, nil
}
