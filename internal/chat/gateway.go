package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/session"
)

// Limiter decides whether one more event from key is allowed now.
type Limiter interface {
	Allow(key string) bool
}

// Gateway is the entry point of every transport: it decodes inbound events,
// runs the matching flow and turns failures into either an errorMessage for
// the sender or a log line.
type Gateway struct {
	svc     *Service
	rooms   *session.Registry
	decode  *Decoder
	limiter Limiter
	timeout time.Duration
	log     *slog.Logger
}

// NewGateway returns a Gateway. limiter may be nil; timeout bounds the
// persistence work of a single event.
func NewGateway(svc *Service, rooms *session.Registry, limiter Limiter, timeout time.Duration, log *slog.Logger) *Gateway {
	return &Gateway{
		svc:     svc,
		rooms:   rooms,
		decode:  NewDecoder(),
		limiter: limiter,
		timeout: timeout,
		log:     log,
	}
}

// Connect logs a new transport connection.
func (g *Gateway) Connect(c session.Conn) {
	g.log.Info("client connected", "conn", c.ID())
}

// Disconnect removes c from every room. In-flight work of c continues.
func (g *Gateway) Disconnect(c session.Conn) {
	rooms := g.rooms.Rooms(c.ID())
	g.rooms.Leave(c)
	if f, ok := g.limiter.(interface{ Forget(key string) }); ok {
		f.Forget(c.ID())
	}
	g.log.Info("client disconnected", "conn", c.ID(), "rooms", rooms)
}

// Handle processes one inbound event from c. It never returns an error:
// each event is a unit of work whose failure does not affect the next.
func (g *Gateway) Handle(ctx context.Context, c session.Conn, ev session.Event) {
	if g.limiter != nil && !g.limiter.Allow(c.ID()) {
		g.log.Warn("rate limit exceeded, dropping event", "conn", c.ID(), "event", ev.Name)
		return
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	switch ev.Name {
	case EventJoinRoom:
		g.joinRoom(c, ev)
	case EventChatMessage:
		g.chatMessage(ctx, c, ev)
	case EventResetUnreadCount:
		g.resetUnreadCount(ctx, c, ev)
	default:
		g.log.Debug("ignoring unknown event", "conn", c.ID(), "event", ev.Name)
	}
}

func (g *Gateway) joinRoom(c session.Conn, ev session.Event) {
	identity, err := g.decode.JoinRoom(ev.Data)
	if err != nil {
		g.log.Warn("invalid joinRoom", "conn", c.ID(), "error", err)
		return
	}
	g.rooms.Join(identity, c)
	g.log.Info("joined room", "conn", c.ID(), "room", identity)
}

func (g *Gateway) chatMessage(ctx context.Context, c session.Conn, ev session.Event) {
	in, err := g.decode.ChatMessage(ev.Data)
	if err != nil {
		g.log.Warn("incomplete message dropped", "conn", c.ID(), "error", err)
		return
	}

	saved, err := g.svc.SendMessage(ctx, in)
	if err == nil {
		return
	}
	if text, ok := UserMessage(err); ok {
		g.reply(c, text)
		g.log.Info("message refused", "conn", c.ID(), "senderId", in.SenderID, "receiverId", in.ReceiverID, "reason", err)
		return
	}

	attrs := []any{"conn", c.ID(), "senderId", in.SenderID, "receiverId", in.ReceiverID, "error", err}
	if saved != nil {
		attrs = append(attrs, "messageId", saved.ID.Hex())
	}
	var perr *PersistenceError
	if errors.As(err, &perr) {
		g.log.Error("failed to save message", attrs...)
		return
	}
	g.log.Error("failed to deliver message", attrs...)
}

func (g *Gateway) resetUnreadCount(ctx context.Context, c session.Conn, ev session.Event) {
	in, err := g.decode.ResetUnread(ev.Data)
	if err != nil {
		g.log.Warn("invalid resetUnreadCount", "conn", c.ID(), "error", err)
		return
	}

	if _, err := g.svc.MarkRead(ctx, in); err != nil {
		if errors.Is(err, ErrNotFound) {
			g.log.Warn("chat list not found", "chatId", in.ChatID, "userId", in.UserID)
			return
		}
		g.log.Error("failed to reset unread count", "chatId", in.ChatID, "userId", in.UserID, "error", err)
	}
}

func (g *Gateway) reply(c session.Conn, text string) {
	ev, err := session.NewEvent(EventErrorMessage, ErrorMessage{Message: text})
	if err != nil {
		g.log.Error("encode errorMessage", "error", err)
		return
	}
	if err := c.Send(ev); err != nil {
		g.log.Warn("failed to send errorMessage", "conn", c.ID(), "error", err)
	}
}
