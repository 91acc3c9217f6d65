package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageRecord is the durable log of one routed user→owner message.
// Records are immutable once written; the retention sweeper bulk-deletes
// them once they pass the retention threshold.
type MessageRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	OwnerID   int64              `bson:"owner_id" json:"-"`
	SenderID  int64              `bson:"sender_id" json:"sender_id"`
	Body      string             `bson:"body" json:"body"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
