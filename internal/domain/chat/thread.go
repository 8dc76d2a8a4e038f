// Package chat contains the conversation thread aggregate.
package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/shared"
)

// Thread errors
var (
	ErrThreadArchived = errors.New("thread is archived")
	ErrEmptyMessage   = errors.New("message content cannot be empty")
)

// Role is the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ThreadStatus is the lifecycle state of a thread
type ThreadStatus string

const (
	ThreadOpen     ThreadStatus = "OPEN"
	ThreadArchived ThreadStatus = "ARCHIVED"
)

// InterruptedMarker is appended to an assistant message persisted after
// a stream was cancelled with at least one delta already produced.
const InterruptedMarker = "[interrupted]"

// Message is one entry in a thread. Messages are ordered by the time the
// server finalized them.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Thread is the conversation aggregate
type Thread struct {
	shared.AggregateRoot

	id        uuid.UUID
	userID    uuid.UUID
	status    ThreadStatus
	messages  []Message
	createdAt time.Time
	updatedAt time.Time
}

// NewThread creates an open thread. Threads are persisted eagerly so
// concurrent clients can share them.
func NewThread(id, userID uuid.UUID) *Thread {
	now := time.Now().UTC()
	return &Thread{
		id:        id,
		userID:    userID,
		status:    ThreadOpen,
		createdAt: now,
		updatedAt: now,
	}
}

// Rehydrate reconstructs a thread from persisted state
func Rehydrate(id, userID uuid.UUID, status ThreadStatus, messages []Message, createdAt, updatedAt time.Time) *Thread {
	return &Thread{
		id:        id,
		userID:    userID,
		status:    status,
		messages:  messages,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (t *Thread) ID() uuid.UUID        { return t.id }
func (t *Thread) UserID() uuid.UUID    { return t.userID }
func (t *Thread) Status() ThreadStatus { return t.status }
func (t *Thread) Messages() []Message  { return t.messages }
func (t *Thread) CreatedAt() time.Time { return t.createdAt }
func (t *Thread) UpdatedAt() time.Time { return t.updatedAt }

// IsOwnedBy verifies thread ownership
func (t *Thread) IsOwnedBy(userID uuid.UUID) bool {
	return t.userID == userID
}

// AppendExchange appends the user message and the assistant reply in one
// step; both are written in a single transaction by the repository, and
// MessageSentEvent is raised once for the pair.
func (t *Thread) AppendExchange(userContent, assistantContent string) error {
	if t.status == ThreadArchived {
		return ErrThreadArchived
	}
	if userContent == "" || assistantContent == "" {
		return ErrEmptyMessage
	}

	now := time.Now().UTC()
	t.messages = append(t.messages,
		Message{Role: RoleUser, Content: userContent, CreatedAt: now},
		Message{Role: RoleAssistant, Content: assistantContent, CreatedAt: now},
	)
	t.updatedAt = now

	t.AddEvent(MessageSentEvent{
		ThreadID: t.id,
		UserID:   t.userID,
		SentAt:   now,
	})
	return nil
}

// Window returns the last k messages, the bounded model context
func (t *Thread) Window(k int) []Message {
	if k <= 0 || len(t.messages) <= k {
		return t.messages
	}
	return t.messages[len(t.messages)-k:]
}

// Archive closes the thread
func (t *Thread) Archive() {
	t.status = ThreadArchived
	t.updatedAt = time.Now().UTC()
}
