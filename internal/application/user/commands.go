// Package user provides the application layer for identity, profile,
// notification preferences and device push tokens.
package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/user"
)

// CreateUserCommand registers a new account shell; onboarding fills the
// profile later.
type CreateUserCommand struct {
	UserID   uuid.UUID `validate:"required"`
	Email    string    `validate:"required,email"`
	Timezone string    `validate:"required"`
	Language string
}

func (CreateUserCommand) CommandName() string  { return "user.create" }
func (c CreateUserCommand) ActorID() uuid.UUID { return c.UserID }

// ProfileInput carries the physiology fields of onboarding and profile
// updates.
type ProfileInput struct {
	Age            int     `validate:"required,gte=13,lte=120"`
	Sex            string  `validate:"required,oneof=male female"`
	HeightCm       float64 `validate:"required,gt=0"`
	WeightKg       float64 `validate:"required,gt=0"`
	BodyFatPct     *float64
	ActivityLevel  string `validate:"required"`
	Goal           string `validate:"required,oneof=CUT BULK RECOMP"`
	TargetWeightKg *float64
	DietaryPrefs   []string
	Allergies      []string
}

// CompleteOnboardingCommand attaches the first profile to the user.
type CompleteOnboardingCommand struct {
	UserID  uuid.UUID `validate:"required"`
	Profile ProfileInput
}

func (CompleteOnboardingCommand) CommandName() string  { return "user.complete_onboarding" }
func (c CompleteOnboardingCommand) ActorID() uuid.UUID { return c.UserID }

// UpdateProfileCommand replaces the profile.
type UpdateProfileCommand struct {
	UserID  uuid.UUID `validate:"required"`
	Profile ProfileInput
}

func (UpdateProfileCommand) CommandName() string  { return "user.update_profile" }
func (c UpdateProfileCommand) ActorID() uuid.UUID { return c.UserID }

// UpdateNotificationPrefsCommand stores the reminder configuration.
type UpdateNotificationPrefsCommand struct {
	UserID uuid.UUID `validate:"required"`
	Prefs  user.NotificationPrefs
}

func (UpdateNotificationPrefsCommand) CommandName() string  { return "user.update_notification_prefs" }
func (c UpdateNotificationPrefsCommand) ActorID() uuid.UUID { return c.UserID }

// RegisterFcmTokenCommand upserts a device push token. Re-registering a
// known token reactivates it instead of duplicating it.
type RegisterFcmTokenCommand struct {
	UserID   uuid.UUID `validate:"required"`
	Token    string    `validate:"required"`
	Platform string    `validate:"required,oneof=ios android"`
}

func (RegisterFcmTokenCommand) CommandName() string  { return "user.register_fcm_token" }
func (c RegisterFcmTokenCommand) ActorID() uuid.UUID { return c.UserID }

// GetUserQuery returns the user read model.
type GetUserQuery struct {
	UserID uuid.UUID
}

func (GetUserQuery) QueryName() string    { return "user.get" }
func (q GetUserQuery) ActorID() uuid.UUID { return q.UserID }

// GetProfileQuery returns the profile with derived daily targets.
type GetProfileQuery struct {
	UserID uuid.UUID
}

func (GetProfileQuery) QueryName() string    { return "user.get_profile" }
func (q GetProfileQuery) ActorID() uuid.UUID { return q.UserID }

// GetNotificationPrefsQuery returns the stored reminder configuration.
type GetNotificationPrefsQuery struct {
	UserID uuid.UUID
}

func (GetNotificationPrefsQuery) QueryName() string    { return "user.get_notification_prefs" }
func (q GetNotificationPrefsQuery) ActorID() uuid.UUID { return q.UserID }

// UserDTO is the serialized user read model.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Timezone  string    `json:"timezone"`
	Language  string    `json:"language"`
	Onboarded bool      `json:"onboarded"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileDTO pairs the raw profile with the derived daily targets.
type ProfileDTO struct {
	Profile user.Profile      `json:"profile"`
	Targets user.MacroTargets `json:"targets"`
}
