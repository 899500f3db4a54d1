package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Message maps to the chats collection. Stored messages are never updated.
type Message struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Text       string        `bson:"text" json:"text"`
	Sender     string        `bson:"sender" json:"sender"` // display name
	SenderID   string        `bson:"senderId" json:"senderId"`
	ReceiverID string        `bson:"receiverId" json:"receiverId"`
	Image      *string       `bson:"image" json:"image"`
	Type       string        `bson:"type" json:"type"`
	Role       string        `bson:"role" json:"role"`
	SentAt     time.Time     `bson:"waktu" json:"waktu"`
	CreatedAt  time.Time     `bson:"createdAt" json:"createdAt"`
}

// Message types accepted on the wire.
const (
	TypeText  = "text"
	TypeImage = "image"
)

// Participant is one member of a conversation.
type Participant struct {
	User string `bson:"user" json:"user"`
	Role string `bson:"role,omitempty" json:"role,omitempty"`
}

// Schedule maps to the jadwals collection owned by the scheduling service.
// Only the consultation status is read here.
type Schedule struct {
	ID     bson.ObjectID `bson:"_id" json:"_id"`
	Status string        `bson:"status_konsul" json:"status_konsul"`
}

// Conversation maps to the chatlists collection: one document per
// participant pair, carrying the preview and the unread counters.
type Conversation struct {
	ID              bson.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Participants    []Participant  `bson:"participants" json:"participants"`
	ScheduleID      bson.ObjectID  `bson:"jadwal,omitempty" json:"jadwal"`
	LastMessage     string         `bson:"lastMessage" json:"lastMessage"`
	LastMessageDate time.Time      `bson:"lastMessageDate" json:"lastMessageDate"`
	UnreadCount     map[string]int `bson:"unreadCount" json:"unreadCount"`

	// Schedule is populated by lookups that join the jadwals collection.
	Schedule *Schedule `bson:"schedule,omitempty" json:"schedule,omitempty"`
}

// HasParticipant reports whether id is one of the conversation members.
func (c *Conversation) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p.User == id {
			return true
		}
	}
	return false
}
