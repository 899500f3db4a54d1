// Package chat implements the consultation chat core: locating the
// conversation of a message, gating on the consultation schedule, storing
// messages, keeping unread counters and fanning out the results.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/data"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/fanout"
)

// Service runs the send and acknowledge flows.
type Service struct {
	locator  *Locator
	gate     *Gate
	store    *Store
	ledger   *Ledger
	dispatch *Dispatcher
	log      *slog.Logger
	now      func() time.Time
}

// NewService wires the chat components over the given stores.
func NewService(
	conversations ConversationStore,
	messages MessageRepository,
	gate *Gate,
	pub fanout.Publisher,
	log *slog.Logger,
) *Service {
	return &Service{
		locator:  NewLocator(conversations),
		gate:     gate,
		store:    NewStore(messages),
		ledger:   NewLedger(conversations),
		dispatch: NewDispatcher(pub, log),
		log:      log,
		now:      time.Now,
	}
}

// SendMessage delivers in: locate the conversation, check the gate, store
// the message, bump the receiver's counter and echo to both rooms. The
// returned message is non-nil once stored, even if a later step failed.
func (s *Service) SendMessage(ctx context.Context, in ChatMessage) (*data.Message, error) {
	conv, err := s.locator.FindByParticipants(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	s.log.Debug("schedule status", "chatId", conv.ID.Hex(), "status", conv.Schedule.Status)
	if !s.gate.CanAcceptMessage(conv.Schedule) {
		return nil, ErrConsultationEnded
	}

	now := s.now()
	msg := in.Message(now)

	// append and increment under the conversation lock so that storage
	// order and counter updates follow acceptance order
	unlock := s.ledger.Lock(conv.ID)
	saved, err := s.store.Append(ctx, msg)
	if err != nil {
		unlock()
		return nil, err
	}
	_, err = s.ledger.Increment(ctx, conv, saved.ReceiverID, preview(saved), now)
	unlock()
	if err != nil {
		return saved, err
	}

	if err := s.dispatch.MessageStored(ctx, saved); err != nil {
		return saved, fmt.Errorf("dispatch message: %w", err)
	}
	return saved, nil
}

// MarkRead zeroes in.UserID's counter on in.ChatID and notifies both
// members.
func (s *Service) MarkRead(ctx context.Context, in ResetUnread) (*data.Conversation, error) {
	conv, err := s.locator.FindByID(ctx, in.ChatID)
	if err != nil {
		return nil, err
	}

	unlock := s.ledger.Lock(conv.ID)
	updated, err := s.ledger.Reset(ctx, conv, in.UserID)
	unlock()
	if err != nil {
		return nil, err
	}

	if err := s.dispatch.UnreadReset(ctx, updated, in.UserID); err != nil {
		return updated, fmt.Errorf("dispatch unread count: %w", err)
	}
	return updated, nil
}

// ListChats returns the conversations of user, most recent first.
func (s *Service) ListChats(ctx context.Context, user string, limit int64) ([]*data.Conversation, error) {
	convs, err := s.locator.store.ListForParticipant(ctx, user, limit)
	if err != nil {
		return nil, persistence("list conversations", err)
	}
	return convs, nil
}

// History returns the latest messages of the conversation chatID, oldest
// first.
func (s *Service) History(ctx context.Context, chatID string, limit int64) ([]*data.Message, error) {
	conv, err := s.locator.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(conv.Participants) < 2 {
		return nil, ErrNotFound
	}
	return s.store.History(ctx, conv.Participants[0].User, conv.Participants[1].User, limit)
}
