package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ConversationsStore provides chat list database operations. Every
// mutation is a single-document atomic update so concurrent deliveries and
// acknowledgements on one conversation never overwrite each other's
// counters.
type ConversationsStore struct {
	// coll is reference to "chatlists" collection in MongoDB
	coll *mongo.Collection
	// schedules is the collection name joined by lookups
	schedules string
}

// NewConversationsStore returns a ConversationsStore over coll; schedules is
// the name of the collection holding the consultation schedules.
func NewConversationsStore(coll *mongo.Collection, schedules string) *ConversationsStore {
	return &ConversationsStore{coll: coll, schedules: schedules}
}

// FindByParticipants returns the conversation containing both a and b with
// its schedule joined. Schedule is nil when the reference does not resolve.
func (s *ConversationsStore) FindByParticipants(ctx context.Context, a, b string) (*Conversation, error) {
	pair := normalize.Identities(a, b)

	pipeline := mongo.Pipeline{
		// Stage 1: both participants present; the pair is the uniqueness key
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "participants.user", Value: bson.D{{Key: "$all", Value: bson.A{pair[0], pair[1]}}}},
		}}},
		bson.D{{Key: "$limit", Value: 1}},
		// Stage 2: join the schedule document referenced by "jadwal"
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: s.schedules},
			{Key: "localField", Value: "jadwal"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "schedule"},
		}}},
		// Stage 3: array → single document, keeping conversations whose schedule is gone
		bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$schedule"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate conversation: %w", err)
	}
	defer cursor.Close(ctx)

	var found []*Conversation
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

// FindByID returns the conversation with the given hex id. Malformed ids are
// reported as ErrNotFound.
func (s *ConversationsStore) FindByID(ctx context.Context, id string) (*Conversation, error) {
	oid, err := bson.ObjectIDFromHex(normalize.Identity(id))
	if err != nil {
		return nil, ErrNotFound
	}

	var conv Conversation
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &conv, nil
}

// RecordDelivery sets the preview and increments recipient's unread counter
// in one update and returns the updated document.
func (s *ConversationsStore) RecordDelivery(ctx context.Context, id bson.ObjectID, recipient, preview string, at time.Time) (*Conversation, error) {
	update := bson.M{
		"$set": bson.M{"lastMessage": preview, "lastMessageDate": at},
		"$inc": bson.M{"unreadCount." + recipient: 1},
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

// ResetUnread sets participant's unread counter to zero and returns the
// updated document. The filter requires participant to be a member so no
// counter is ever created for an outsider.
func (s *ConversationsStore) ResetUnread(ctx context.Context, id bson.ObjectID, participant string) (*Conversation, error) {
	filter := bson.M{"_id": id, "participants.user": participant}
	update := bson.M{"$set": bson.M{"unreadCount." + participant: 0}}
	return s.findOneAndUpdate(ctx, filter, update)
}

// ListForParticipant returns the conversations of user, most recent first.
func (s *ConversationsStore) ListForParticipant(ctx context.Context, user string, limit int64) ([]*Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lastMessageDate", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, bson.M{"participants.user": normalize.Identity(user)}, opts)
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var convs []*Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return convs, nil
}

func (s *ConversationsStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv Conversation
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	return &conv, nil
}
