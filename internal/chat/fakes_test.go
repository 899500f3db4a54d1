package chat

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"runtime"
	"sync"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/data"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/fanout"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/session"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// memConversations is an in-memory ConversationStore. RecordDelivery is a
// deliberately non-atomic read-modify-write: without the ledger's lock,
// concurrent deliveries lose increments.
type memConversations struct {
	mu        sync.Mutex
	convs     map[bson.ObjectID]*data.Conversation
	schedules map[bson.ObjectID]*data.Schedule

	deliveryErr error
}

func newMemConversations() *memConversations {
	return &memConversations{
		convs:     make(map[bson.ObjectID]*data.Conversation),
		schedules: make(map[bson.ObjectID]*data.Schedule),
	}
}

// seed adds a conversation between a and b whose schedule has status; an
// empty status leaves the schedule reference dangling.
func (m *memConversations) seed(a, b, status string) *data.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	scheduleID := bson.NewObjectID()
	if status != "" {
		m.schedules[scheduleID] = &data.Schedule{ID: scheduleID, Status: status}
	}
	conv := &data.Conversation{
		ID:           bson.NewObjectID(),
		Participants: []data.Participant{{User: a, Role: "masyarakat"}, {User: b, Role: "dokter"}},
		ScheduleID:   scheduleID,
		UnreadCount:  map[string]int{a: 0, b: 0},
	}
	m.convs[conv.ID] = conv
	return clone(conv)
}

func (m *memConversations) setStatus(convID bson.ObjectID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[m.convs[convID].ScheduleID].Status = status
}

func (m *memConversations) get(id bson.ObjectID) *data.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.convs[id])
}

func (m *memConversations) FindByParticipants(_ context.Context, a, b string) (*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.HasParticipant(a) && c.HasParticipant(b) {
			out := clone(c)
			if s, ok := m.schedules[c.ScheduleID]; ok {
				cp := *s
				out.Schedule = &cp
			}
			return out, nil
		}
	}
	return nil, data.ErrNotFound
}

func (m *memConversations) FindByID(_ context.Context, id string) (*data.Conversation, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, data.ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[oid]
	if !ok {
		return nil, data.ErrNotFound
	}
	return clone(c), nil
}

func (m *memConversations) RecordDelivery(_ context.Context, id bson.ObjectID, recipient, preview string, at time.Time) (*data.Conversation, error) {
	if m.deliveryErr != nil {
		return nil, m.deliveryErr
	}

	m.mu.Lock()
	c, ok := m.convs[id]
	if !ok {
		m.mu.Unlock()
		return nil, data.ErrNotFound
	}
	current := c.UnreadCount[recipient]
	m.mu.Unlock()

	runtime.Gosched()

	m.mu.Lock()
	defer m.mu.Unlock()
	counts := maps.Clone(c.UnreadCount)
	counts[recipient] = current + 1
	c.UnreadCount = counts
	c.LastMessage = preview
	c.LastMessageDate = at
	return clone(c), nil
}

func (m *memConversations) ResetUnread(_ context.Context, id bson.ObjectID, participant string) (*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok || !c.HasParticipant(participant) {
		return nil, data.ErrNotFound
	}
	counts := maps.Clone(c.UnreadCount)
	counts[participant] = 0
	c.UnreadCount = counts
	return clone(c), nil
}

func (m *memConversations) ListForParticipant(_ context.Context, user string, _ int64) ([]*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.Conversation
	for _, c := range m.convs {
		if c.HasParticipant(user) {
			out = append(out, clone(c))
		}
	}
	return out, nil
}

func clone(c *data.Conversation) *data.Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Participants = append([]data.Participant(nil), c.Participants...)
	cp.UnreadCount = maps.Clone(c.UnreadCount)
	if c.Schedule != nil {
		s := *c.Schedule
		cp.Schedule = &s
	}
	return &cp
}

// memMessages is an in-memory MessageRepository.
type memMessages struct {
	mu        sync.Mutex
	msgs      []*data.Message
	appendErr error
}

func (m *memMessages) Append(_ context.Context, msg *data.Message) (*data.Message, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	cp.ID = bson.NewObjectID()
	cp.CreatedAt = time.Now()
	m.msgs = append(m.msgs, &cp)
	out := cp
	return &out, nil
}

func (m *memMessages) History(_ context.Context, a, b string, limit int64) ([]*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.Message
	for _, msg := range m.msgs {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	if int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (m *memMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

// recordingConn captures events pushed to a client.
type recordingConn struct {
	mu     sync.Mutex
	id     string
	events []session.Event
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(ev session.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *recordingConn) named(name string) []session.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []session.Event
	for _, ev := range c.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (c *recordingConn) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// failingPublisher rejects every publish.
type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, session.Event) error {
	return errors.New("bus unavailable")
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

// fixture is a wired chat core with two connected participants.
type fixture struct {
	convs     *memConversations
	msgs      *memMessages
	rooms     *session.Registry
	svc       *Service
	gateway   *Gateway
	patient   *recordingConn
	doctor    *recordingConn
	patientID string
	doctorID  string
}

func newFixture(opts ...func(*fixtureOptions)) *fixture {
	o := fixtureOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	log := slog.New(slog.DiscardHandler)
	f := &fixture{
		convs:     newMemConversations(),
		msgs:      &memMessages{},
		rooms:     session.NewRegistry(log),
		patient:   &recordingConn{id: "conn-patient"},
		doctor:    &recordingConn{id: "conn-doctor"},
		patientID: "65f1c2a9e4b0a1b2c3d4e5a1",
		doctorID:  "65f1c2a9e4b0a1b2c3d4e5b2",
	}
	var pub fanout.Publisher = fanout.NewLocal(f.rooms)
	if o.publisher != nil {
		pub = o.publisher
	}
	f.svc = NewService(f.convs, f.msgs, NewGate(), pub, log)
	f.gateway = NewGateway(f.svc, f.rooms, o.limiter, time.Second, log)

	f.rooms.Join(f.patientID, f.patient)
	f.rooms.Join(f.doctorID, f.doctor)
	return f
}

type fixtureOptions struct {
	publisher fanout.Publisher
	limiter   Limiter
}

func withPublisher(p fanout.Publisher) func(*fixtureOptions) {
	return func(o *fixtureOptions) { o.publisher = p }
}

func withLimiter(l Limiter) func(*fixtureOptions) {
	return func(o *fixtureOptions) { o.limiter = l }
}
