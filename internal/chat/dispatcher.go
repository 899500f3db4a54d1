package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/data"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/fanout"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/session"
	"github.com/samber/lo"
)

// Dispatcher emits outcome events to the rooms of affected participants.
type Dispatcher struct {
	pub fanout.Publisher
	log *slog.Logger
}

// NewDispatcher returns a Dispatcher publishing through pub.
func NewDispatcher(pub fanout.Publisher, log *slog.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, log: log}
}

// MessageStored echoes msg to the receiver and to every session of the
// sender.
func (d *Dispatcher) MessageStored(ctx context.Context, msg *data.Message) error {
	ev, err := session.NewEvent(EventChatMessage, msg)
	if err != nil {
		return err
	}
	targets := lo.Uniq([]string{msg.ReceiverID, msg.SenderID})
	return d.publish(ctx, targets, ev)
}

// UnreadReset sends the new counters to participant and to the other
// member of the conversation. The other member is the single unread-count
// key besides participant; with no such key or several of them only
// participant is notified.
func (d *Dispatcher) UnreadReset(ctx context.Context, conv *data.Conversation, participant string) error {
	ev, err := session.NewEvent(EventUnreadCountUpdated, UnreadCountUpdated{
		ChatID:      conv.ID.Hex(),
		UnreadCount: conv.UnreadCount,
	})
	if err != nil {
		return err
	}

	targets := []string{participant}
	others := lo.Without(lo.Keys(conv.UnreadCount), participant)
	switch len(others) {
	case 0:
	case 1:
		targets = append(targets, others[0])
	default:
		d.log.Warn("unread counters for more than two participants",
			"chatId", conv.ID.Hex(), "keys", len(conv.UnreadCount))
	}
	return d.publish(ctx, targets, ev)
}

func (d *Dispatcher) publish(ctx context.Context, targets []string, ev session.Event) error {
	var errs []error
	for _, to := range targets {
		if err := d.pub.Publish(ctx, to, ev); err != nil {
			errs = append(errs, fmt.Errorf("publish %s to %s: %w", ev.Name, to, err))
		}
	}
	return errors.Join(errs...)
}
