package main

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	patientID = "65f1c2a9e4b0a1b2c3d4e5a1"
	doctorID  = "65f1c2a9e4b0a1b2c3d4e5b2"
)

// memStore backs both the chat list and the message store in memory so the
// transports can be exercised without MongoDB.
type memStore struct {
	mu      sync.Mutex
	convs   []*data.Conversation
	status  map[bson.ObjectID]string
	msgs    []*data.Message
	listErr error
}

func newMemStore() *memStore {
	return &memStore{status: map[bson.ObjectID]string{}}
}

func (m *memStore) seed(a, b, status string) *data.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &data.Conversation{
		ID:           bson.NewObjectID(),
		Participants: []data.Participant{{User: a}, {User: b}},
		ScheduleID:   bson.NewObjectID(),
		UnreadCount:  map[string]int{a: 0, b: 0},
	}
	m.status[c.ScheduleID] = status
	m.convs = append(m.convs, c)
	return copyConv(c)
}

func copyConv(c *data.Conversation) *data.Conversation {
	cp := *c
	cp.UnreadCount = maps.Clone(c.UnreadCount)
	return &cp
}

func (m *memStore) find(pred func(*data.Conversation) bool) *data.Conversation {
	for _, c := range m.convs {
		if pred(c) {
			return c
		}
	}
	return nil
}

func (m *memStore) FindByParticipants(_ context.Context, a, b string) (*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(func(c *data.Conversation) bool { return c.HasParticipant(a) && c.HasParticipant(b) })
	if c == nil {
		return nil, data.ErrNotFound
	}
	out := copyConv(c)
	out.Schedule = &data.Schedule{ID: c.ScheduleID, Status: m.status[c.ScheduleID]}
	return out, nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(func(c *data.Conversation) bool { return c.ID.Hex() == id })
	if c == nil {
		return nil, data.ErrNotFound
	}
	return copyConv(c), nil
}

func (m *memStore) RecordDelivery(_ context.Context, id bson.ObjectID, recipient, preview string, at time.Time) (*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(func(c *data.Conversation) bool { return c.ID == id })
	if c == nil {
		return nil, data.ErrNotFound
	}
	c.UnreadCount[recipient]++
	c.LastMessage, c.LastMessageDate = preview, at
	return copyConv(c), nil
}

func (m *memStore) ResetUnread(_ context.Context, id bson.ObjectID, participant string) (*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(func(c *data.Conversation) bool { return c.ID == id && c.HasParticipant(participant) })
	if c == nil {
		return nil, data.ErrNotFound
	}
	c.UnreadCount[participant] = 0
	return copyConv(c), nil
}

func (m *memStore) ListForParticipant(_ context.Context, user string, _ int64) ([]*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*data.Conversation
	for _, c := range m.convs {
		if c.HasParticipant(user) {
			out = append(out, copyConv(c))
		}
	}
	return out, nil
}

func (m *memStore) Append(_ context.Context, msg *data.Message) (*data.Message, error) {
	if msg.SenderID == "" || msg.ReceiverID == "" {
		return nil, data.ErrInvalidMessage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	cp.ID = bson.NewObjectID()
	m.msgs = append(m.msgs, &cp)
	out := cp
	return &out, nil
}

func (m *memStore) History(_ context.Context, a, b string, _ int64) ([]*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.Message
	for _, msg := range m.msgs {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

var errStoreDown = errors.New("store down")
