package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Ledger maintains the per-participant unread counters of conversations.
// Callers hold Lock for the conversation around every read-modify-write so
// a delivery and an acknowledgement on the same record never interleave.
type Ledger struct {
	store ConversationStore
	locks *keyedMutex
}

// NewLedger returns a Ledger over store.
func NewLedger(store ConversationStore) *Ledger {
	return &Ledger{store: store, locks: newKeyedMutex()}
}

// Lock serializes work on one conversation and returns its release func.
func (l *Ledger) Lock(id bson.ObjectID) (unlock func()) {
	return l.locks.Lock(id.Hex())
}

// Increment records a delivery to recipient: preview and date are updated
// and recipient's counter goes up by one (starting from zero).
func (l *Ledger) Increment(ctx context.Context, conv *data.Conversation, recipient, preview string, at time.Time) (*data.Conversation, error) {
	updated, err := l.store.RecordDelivery(ctx, conv.ID, recipient, preview, at)
	if err != nil {
		return nil, ledgerError("increment unread count", err)
	}
	return updated, nil
}

// Reset sets participant's counter to zero. Counters are never created for
// identities outside the conversation.
func (l *Ledger) Reset(ctx context.Context, conv *data.Conversation, participant string) (*data.Conversation, error) {
	if !conv.HasParticipant(participant) {
		return nil, ErrNotFound
	}
	updated, err := l.store.ResetUnread(ctx, conv.ID, participant)
	if err != nil {
		return nil, ledgerError("reset unread count", err)
	}
	return updated, nil
}

func ledgerError(op string, err error) error {
	if errors.Is(err, data.ErrNotFound) {
		return ErrNotFound
	}
	return persistence(op, err)
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
