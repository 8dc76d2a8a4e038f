package chat

import (
	"time"

	"github.com/google/uuid"
)

// MessageSentEvent is raised after a user/assistant exchange is persisted
type MessageSentEvent struct {
	ThreadID uuid.UUID
	UserID   uuid.UUID
	SentAt   time.Time
}

func (e MessageSentEvent) EventName() string {
	return "chat.message.sent"
}

func (e MessageSentEvent) OccurredAt() time.Time {
	return e.SentAt
}
