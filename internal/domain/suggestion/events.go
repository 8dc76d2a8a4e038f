package suggestion

import (
	"time"

	"github.com/google/uuid"
)

// RejectedEvent is raised when a user rejects a suggestion. Its only
// subscriber today is a structured log sink feeding future model tuning.
type RejectedEvent struct {
	SessionID   uuid.UUID
	UserID      uuid.UUID
	Fingerprint string
	Reason      string
	At          time.Time
}

func (e RejectedEvent) EventName() string {
	return "suggestion.rejected"
}

func (e RejectedEvent) OccurredAt() time.Time {
	return e.At
}
