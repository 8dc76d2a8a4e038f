package user

import (
	"time"

	"github.com/google/uuid"
)

// OnboardedEvent is raised when a user completes onboarding
type OnboardedEvent struct {
	UserID uuid.UUID
	At     time.Time
}

func (e OnboardedEvent) EventName() string {
	return "user.onboarded"
}

func (e OnboardedEvent) OccurredAt() time.Time {
	return e.At
}

// ProfileUpdatedEvent is raised when the profile changes; the cache
// subscriber evicts all user:{id}* keys in response
type ProfileUpdatedEvent struct {
	UserID uuid.UUID
	At     time.Time
}

func (e ProfileUpdatedEvent) EventName() string {
	return "user.profile.updated"
}

func (e ProfileUpdatedEvent) OccurredAt() time.Time {
	return e.At
}
