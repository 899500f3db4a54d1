package chat

import "github.com/PaulBabatuyi/konsultasi-chat/internal/data"

// DefaultClosedStatus is the schedule status the scheduling service writes
// once a consultation is over.
const DefaultClosedStatus = "selesai"

// Gate decides from a schedule's status whether a conversation still
// accepts messages.
type Gate struct {
	closed map[string]struct{}
}

// NewGate returns a gate closed for the given terminal statuses, or for
// DefaultClosedStatus when none are given.
func NewGate(closedStatuses ...string) *Gate {
	if len(closedStatuses) == 0 {
		closedStatuses = []string{DefaultClosedStatus}
	}
	g := &Gate{closed: make(map[string]struct{}, len(closedStatuses))}
	for _, s := range closedStatuses {
		g.closed[s] = struct{}{}
	}
	return g
}

// CanAcceptMessage reports whether a message may be accepted under s. It is
// false exactly for terminal statuses; a nil schedule cannot be vouched for
// and is refused as well.
func (g *Gate) CanAcceptMessage(s *data.Schedule) bool {
	if s == nil {
		return false
	}
	_, closed := g.closed[s.Status]
	return !closed
}
