// Package session tracks which live connections speak for which participant.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// Event is the frame exchanged with clients on every transport.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes payload as the data of an event called name.
func NewEvent(name string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Event{Name: name, Data: raw}, nil
}

// Conn is the minimal interface the registry needs from a transport
// connection: a stable id and the ability to push an event to the client.
type Conn interface {
	ID() string
	Send(Event) error
}

// Registry maps participant identities to the connections that joined their
// room. A connection may sit in several rooms and an identity may have
// several connections (one per device).
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
	// joined is the reverse index used to tear down on disconnect
	joined map[string]map[string]struct{}
	log    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]Conn),
		joined: make(map[string]map[string]struct{}),
		log:    log,
	}
}

// Join adds c to identity's room. Joining twice is harmless.
func (r *Registry) Join(identity string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[identity]; !ok {
		r.rooms[identity] = make(map[string]Conn)
	}
	r.rooms[identity][c.ID()] = c

	if _, ok := r.joined[c.ID()]; !ok {
		r.joined[c.ID()] = make(map[string]struct{})
	}
	r.joined[c.ID()][identity] = struct{}{}
}

// Leave removes c from every room it joined.
func (r *Registry) Leave(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(c.ID())
}

func (r *Registry) removeLocked(connID string) {
	for identity := range r.joined[connID] {
		if conns, ok := r.rooms[identity]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(r.rooms, identity)
			}
		}
	}
	delete(r.joined, connID)
}

// Emit delivers ev to every connection in identity's room and returns how
// many received it. An empty room is not an error: nothing is queued for
// offline participants. Connections whose Send fails are dropped from all
// rooms so a broken stream is not retried on every event.
func (r *Registry) Emit(identity string, ev Event) int {
	r.mu.RLock()
	conns := lo.Values(r.rooms[identity])
	r.mu.RUnlock()

	delivered := 0
	var failed []string
	for _, c := range conns {
		if err := c.Send(ev); err != nil {
			r.log.Warn("dropping connection after failed send",
				"conn", c.ID(), "identity", identity, "event", ev.Name, "error", err)
			failed = append(failed, c.ID())
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		r.mu.Lock()
		for _, id := range failed {
			r.removeLocked(id)
		}
		r.mu.Unlock()
	}
	return delivered
}

// Rooms returns the identities connection id has joined.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.joined[connID])
}

// Connections returns the number of live connections in identity's room.
func (r *Registry) Connections(identity string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[identity])
}
