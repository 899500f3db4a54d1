package chat

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ConversationStore is the persistence the locator and the ledger need.
// RecordDelivery and ResetUnread must each be atomic for one document.
type ConversationStore interface {
	FindByParticipants(ctx context.Context, a, b string) (*data.Conversation, error)
	FindByID(ctx context.Context, id string) (*data.Conversation, error)
	RecordDelivery(ctx context.Context, id bson.ObjectID, recipient, preview string, at time.Time) (*data.Conversation, error)
	ResetUnread(ctx context.Context, id bson.ObjectID, participant string) (*data.Conversation, error)
	ListForParticipant(ctx context.Context, user string, limit int64) ([]*data.Conversation, error)
}

// Locator finds the conversation a chat event refers to.
type Locator struct {
	store ConversationStore
}

// NewLocator returns a Locator over store.
func NewLocator(store ConversationStore) *Locator {
	return &Locator{store: store}
}

// FindByParticipants returns the conversation linking a and b with its
// schedule resolved. The schedule is read on every call so status changes
// are seen by the next message.
func (l *Locator) FindByParticipants(ctx context.Context, a, b string) (*data.Conversation, error) {
	conv, err := l.store.FindByParticipants(ctx, a, b)
	if err != nil {
		return nil, lookupError("find conversation by participants", err)
	}
	if conv.Schedule == nil {
		return nil, ErrScheduleNotFound
	}
	return conv, nil
}

// FindByID returns the conversation with the given id.
func (l *Locator) FindByID(ctx context.Context, id string) (*data.Conversation, error) {
	conv, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError("find conversation by id", err)
	}
	return conv, nil
}

func lookupError(op string, err error) error {
	if errors.Is(err, data.ErrNotFound) {
		return ErrNotFound
	}
	return persistence(op, err)
}
