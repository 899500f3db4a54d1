package chat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/data"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/normalize"
	"github.com/go-playground/validator/v10"
)

// Event names of the socket protocol.
const (
	EventJoinRoom           = "joinRoom"
	EventChatMessage        = "chat message"
	EventResetUnreadCount   = "resetUnreadCount"
	EventErrorMessage       = "errorMessage"
	EventUnreadCountUpdated = "unreadCountUpdated"
)

// Defaults applied to optional chat message fields.
const (
	DefaultSenderName = "User"
	DefaultRole       = "unknown"
)

// Previews stored as lastMessage when a message has no text.
const (
	previewImage = "📷 Gambar"
	previewOther = "Pesan baru"
)

// ChatMessage is the payload of an inbound "chat message" event.
type ChatMessage struct {
	SenderID   string     `json:"senderId" validate:"required,identity"`
	ReceiverID string     `json:"receiverId" validate:"required,identity,nefield=SenderID"`
	Text       string     `json:"text"`
	Sender     string     `json:"sender"`
	Image      *string    `json:"image"`
	Type       string     `json:"type" validate:"omitempty,oneof=text image"`
	Role       string     `json:"role"`
	Waktu      ClientTime `json:"waktu"`
	Timestamp  ClientTime `json:"timestamp"`
}

// Message builds the message to store, filling in documented defaults.
// now is used when the client sent no timestamp.
func (m ChatMessage) Message(now time.Time) *data.Message {
	msg := &data.Message{
		Text:       m.Text,
		Sender:     m.Sender,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Image:      m.Image,
		Type:       m.Type,
		Role:       m.Role,
		SentAt:     now,
	}
	if msg.Sender == "" {
		msg.Sender = DefaultSenderName
	}
	if msg.Type == "" {
		msg.Type = data.TypeText
	}
	if msg.Role == "" {
		msg.Role = DefaultRole
	}
	if msg.Image != nil && *msg.Image == "" {
		msg.Image = nil
	}
	switch {
	case !m.Waktu.IsZero():
		msg.SentAt = m.Waktu.Time
	case !m.Timestamp.IsZero():
		msg.SentAt = m.Timestamp.Time
	}
	return msg
}

// localLayouts are accepted for client timestamps without a zone; they are
// read in server local time.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ClientTime is an optional timestamp sent by a client: an RFC 3339 string,
// a zoneless ISO string or epoch milliseconds. Values it cannot read leave
// it zero, so the server time is used and the message is kept.
type ClientTime struct {
	time.Time
}

// UnmarshalJSON never fails.
func (c *ClientTime) UnmarshalJSON(b []byte) error {
	c.Time = time.Time{}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c.Time = parseClientTime(s)
		return nil
	}

	// Date.now() in browsers
	var ms float64
	if err := json.Unmarshal(b, &ms); err == nil && ms > 0 {
		c.Time = time.UnixMilli(int64(ms))
	}
	return nil
}

func parseClientTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

// preview is the chat list text for msg.
func preview(msg *data.Message) string {
	switch {
	case msg.Text != "":
		return msg.Text
	case msg.Type == data.TypeImage:
		return previewImage
	default:
		return previewOther
	}
}

// ResetUnread is the payload of an inbound "resetUnreadCount" event.
type ResetUnread struct {
	ChatID string `json:"chatId" validate:"required"`
	UserID string `json:"userId" validate:"required,identity"`
}

// ErrorMessage is sent to the originating connection on user-facing errors.
type ErrorMessage struct {
	Message string `json:"message"`
}

// UnreadCountUpdated carries a conversation's counters after a reset.
type UnreadCountUpdated struct {
	ChatID      string         `json:"chatId"`
	UnreadCount map[string]int `json:"unreadCount"`
}

// Decoder turns event data into validated payloads.
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder returns a Decoder with the protocol's validation rules.
func NewDecoder() *Decoder {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("identity", func(fl validator.FieldLevel) bool {
		return normalize.ValidKey(fl.Field().String())
	})
	return &Decoder{validate: v}
}

// JoinRoom decodes the identity carried by a joinRoom event.
func (d *Decoder) JoinRoom(raw json.RawMessage) (string, error) {
	var identity string
	if err := json.Unmarshal(raw, &identity); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	identity = normalize.Identity(identity)
	if !normalize.ValidKey(identity) {
		return "", fmt.Errorf("%w: bad identity %q", ErrInvalidMessage, identity)
	}
	return identity, nil
}

// ChatMessage decodes and validates a chat message payload.
func (d *Decoder) ChatMessage(raw json.RawMessage) (ChatMessage, error) {
	var m ChatMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	m.SenderID = normalize.Identity(m.SenderID)
	m.ReceiverID = normalize.Identity(m.ReceiverID)
	if err := d.validate.Struct(m); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return m, nil
}

// ResetUnread decodes and validates a resetUnreadCount payload.
func (d *Decoder) ResetUnread(raw json.RawMessage) (ResetUnread, error) {
	var r ResetUnread
	if err := json.Unmarshal(raw, &r); err != nil {
		return ResetUnread{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	r.ChatID = normalize.Identity(r.ChatID)
	r.UserID = normalize.Identity(r.UserID)
	if err := d.validate.Struct(r); err != nil {
		return ResetUnread{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return r, nil
}
