package chat

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/data"
)

// MessageRepository persists chat messages.
type MessageRepository interface {
	Append(ctx context.Context, msg *data.Message) (*data.Message, error)
	History(ctx context.Context, a, b string, limit int64) ([]*data.Message, error)
}

// Store is the message store of the send path.
type Store struct {
	repo MessageRepository
	now  func() time.Time
}

// NewStore returns a Store over repo.
func NewStore(repo MessageRepository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// Append validates and persists msg. Nothing is written when an identity is
// missing. A zero SentAt gets the current time.
func (s *Store) Append(ctx context.Context, msg *data.Message) (*data.Message, error) {
	if msg.SenderID == "" || msg.ReceiverID == "" {
		return nil, ErrInvalidMessage
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = s.now()
	}

	saved, err := s.repo.Append(ctx, msg)
	if err != nil {
		if errors.Is(err, data.ErrInvalidMessage) {
			return nil, ErrInvalidMessage
		}
		return nil, persistence("append message", err)
	}
	return saved, nil
}

// History returns the latest messages exchanged by a and b, oldest first.
func (s *Store) History(ctx context.Context, a, b string, limit int64) ([]*data.Message, error) {
	msgs, err := s.repo.History(ctx, a, b, limit)
	if err != nil {
		return nil, persistence("message history", err)
	}
	return msgs, nil
}
