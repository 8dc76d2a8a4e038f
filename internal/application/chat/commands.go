// Package chat provides the application layer for the conversational
// assistant: unary and streaming message surfaces, the bounded history
// window, and multi-device fan-out through the connection hub.
package chat

import (
	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/chat"
)

// SendMessageCommand is the unary surface; the reply is returned whole.
// A zero ThreadID starts a new thread.
type SendMessageCommand struct {
	UserID   uuid.UUID `validate:"required"`
	ThreadID uuid.UUID
	Content  string `validate:"required"`
}

func (SendMessageCommand) CommandName() string  { return "chat.send_message" }
func (c SendMessageCommand) ActorID() uuid.UUID { return c.UserID }

// StreamMessageCommand is the streaming surface: deltas are forwarded
// to Sink in arrival order and the finished exchange is persisted.
type StreamMessageCommand struct {
	UserID   uuid.UUID `validate:"required"`
	ThreadID uuid.UUID
	Content  string `validate:"required"`
	Sink     Sink
}

func (StreamMessageCommand) CommandName() string  { return "chat.stream_message" }
func (c StreamMessageCommand) ActorID() uuid.UUID { return c.UserID }

// ArchiveThreadCommand closes a thread to further messages.
type ArchiveThreadCommand struct {
	UserID   uuid.UUID `validate:"required"`
	ThreadID uuid.UUID `validate:"required"`
}

func (ArchiveThreadCommand) CommandName() string  { return "chat.archive_thread" }
func (c ArchiveThreadCommand) ActorID() uuid.UUID { return c.UserID }

// GetThreadQuery returns one thread with its messages.
type GetThreadQuery struct {
	UserID   uuid.UUID
	ThreadID uuid.UUID
}

func (GetThreadQuery) QueryName() string    { return "chat.get_thread" }
func (q GetThreadQuery) ActorID() uuid.UUID { return q.UserID }

// ListThreadsQuery returns the user's threads.
type ListThreadsQuery struct {
	UserID uuid.UUID
	Limit  int
}

func (ListThreadsQuery) QueryName() string    { return "chat.list_threads" }
func (q ListThreadsQuery) ActorID() uuid.UUID { return q.UserID }

// MessageResult is the outcome of a send or stream. Interrupted marks a
// partially persisted reply; the facade reports PARTIAL_RESPONSE for it.
type MessageResult struct {
	ThreadID    uuid.UUID    `json:"thread_id"`
	Reply       chat.Message `json:"reply"`
	Interrupted bool         `json:"interrupted,omitempty"`
}

// ThreadDTO is the serialized thread read model.
type ThreadDTO struct {
	ID       uuid.UUID         `json:"id"`
	UserID   uuid.UUID         `json:"user_id"`
	Status   chat.ThreadStatus `json:"status"`
	Messages []chat.Message    `json:"messages"`
}

// ToThreadDTO projects the aggregate into its read model.
func ToThreadDTO(t *chat.Thread) ThreadDTO {
	return ThreadDTO{
		ID:       t.ID(),
		UserID:   t.UserID(),
		Status:   t.Status(),
		Messages: t.Messages(),
	}
}
