package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no conversation links the participants, or the id
	// does not name one.
	ErrNotFound = errors.New("chat session not found")
	// ErrScheduleNotFound means the conversation exists but its schedule
	// reference does not resolve. It matches ErrNotFound with errors.Is.
	ErrScheduleNotFound = fmt.Errorf("%w: schedule missing", ErrNotFound)
	// ErrConsultationEnded means the schedule is in a terminal state and the
	// gate refuses new messages.
	ErrConsultationEnded = errors.New("consultation has ended")
	// ErrInvalidMessage means a required identity is missing or malformed.
	ErrInvalidMessage = errors.New("invalid message")
)

// Texts shown to the sender in errorMessage events. The deployed clients
// display them verbatim.
const (
	msgSessionNotFound   = "Sesi chat tidak ditemukan."
	msgScheduleNotFound  = "⛔ Jadwal tidak ditemukan."
	msgConsultationEnded = "⛔ Konsultasi telah selesai. Anda tidak dapat mengirim pesan."
)

// PersistenceError wraps a failure of the backing store. The operation is
// abandoned and never reported to clients.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// UserMessage returns the text to send back to the client for errors that
// are user-facing, and false for errors that are only logged.
func UserMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrScheduleNotFound):
		return msgScheduleNotFound, true
	case errors.Is(err, ErrNotFound):
		return msgSessionNotFound, true
	case errors.Is(err, ErrConsultationEnded):
		return msgConsultationEnded, true
	default:
		return "", false
	}
}
