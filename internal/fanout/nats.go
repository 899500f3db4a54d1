package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/session"
	"github.com/nats-io/nats.go"
)

// NATS fans events out over a core NATS subject. Delivery is at-most-once,
// matching the registry's no-queueing contract.
type NATS struct {
	nc      *nats.Conn
	subject string
	rooms   *session.Registry
	log     *slog.Logger
}

// NewNATS connects to url.
func NewNATS(url, subject string, rooms *session.Registry, log *slog.Logger) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("konsultasi-chat"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATS{nc: nc, subject: subject, rooms: rooms, log: log}, nil
}

// Publish implements Publisher.
func (n *NATS) Publish(_ context.Context, identity string, ev session.Event) error {
	b, err := encode(identity, ev)
	if err != nil {
		return err
	}
	if err := n.nc.Publish(n.subject, b); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Run delivers bus messages to the local registry until ctx is done.
func (n *NATS) Run(ctx context.Context) error {
	sub, err := n.nc.Subscribe(n.subject, func(m *nats.Msg) {
		env, err := decode(m.Data)
		if err != nil {
			n.log.Warn("discarding fanout message", "bus", "nats", "error", err)
			return
		}
		n.rooms.Emit(env.To, env.Event)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := n.nc.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	n.log.Info("fanout subscribed", "bus", "nats", "subject", n.subject)

	<-ctx.Done()
	return nil
}

// Close drains the connection.
func (n *NATS) Close() error {
	return n.nc.Drain()
}
