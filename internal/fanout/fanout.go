// Package fanout carries outbound events to the rooms of the session
// registry, either in-process or through a message bus shared by several
// server instances.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/session"
)

// Publisher sends ev to every connection addressed by identity.
type Publisher interface {
	Publish(ctx context.Context, identity string, ev session.Event) error
}

// Local delivers straight to the process-local registry.
type Local struct {
	rooms *session.Registry
}

// NewLocal returns a Publisher for single-instance deployments.
func NewLocal(rooms *session.Registry) *Local {
	return &Local{rooms: rooms}
}

// Publish implements Publisher.
func (l *Local) Publish(_ context.Context, identity string, ev session.Event) error {
	l.rooms.Emit(identity, ev)
	return nil
}

// envelope is the bus payload: the target room plus the client frame.
type envelope struct {
	To    string        `json:"to"`
	Event session.Event `json:"event"`
}

func encode(identity string, ev session.Event) ([]byte, error) {
	b, err := json.Marshal(envelope{To: identity, Event: ev})
	if err != nil {
		return nil, fmt.Errorf("encode fanout envelope: %w", err)
	}
	return b, nil
}

func decode(b []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return envelope{}, fmt.Errorf("decode fanout envelope: %w", err)
	}
	if env.To == "" {
		return envelope{}, fmt.Errorf("decode fanout envelope: missing recipient")
	}
	return env, nil
}
