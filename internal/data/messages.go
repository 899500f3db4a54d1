package data

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidMessage is returned when a message lacks sender or receiver.
	ErrInvalidMessage = errors.New("message requires sender and receiver")
)

// MessagesStore provides chat message database operations.
type MessagesStore struct {
	// coll is reference to "chats" collection in MongoDB
	coll *mongo.Collection
	now  func() time.Time
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll, now: time.Now}
}

// Append inserts msg and returns it with its generated id. A zero SentAt is
// replaced by the current time; CreatedAt is always server time.
func (m *MessagesStore) Append(ctx context.Context, msg *Message) (*Message, error) {
	// Both ends are required: the document is useless without them and
	// nothing is written when either is missing
	msg.SenderID = normalize.Identity(msg.SenderID)
	msg.ReceiverID = normalize.Identity(msg.ReceiverID)
	if msg.SenderID == "" || msg.ReceiverID == "" {
		return nil, ErrInvalidMessage
	}

	now := m.now()
	if msg.SentAt.IsZero() {
		msg.SentAt = now
	}
	msg.CreatedAt = now

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	// MongoDB generated the _id; it is part of what clients receive
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// History returns recent messages between two participants ordered
// oldest→newest.
func (m *MessagesStore) History(ctx context.Context, a, b string, limit int64) ([]*Message, error) {
	// newest first so the limit keeps the most recent page
	opts := options.Find().
		SetSort(bson.D{{Key: "waktu", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	a, b = normalize.Identity(a), normalize.Identity(b)
	filter := bson.M{
		"$or": bson.A{
			bson.M{"senderId": a, "receiverId": b},
			bson.M{"senderId": b, "receiverId": a},
		},
	}

	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	// Clients render chronologically
	slices.Reverse(messages)
	return messages, nil
}
