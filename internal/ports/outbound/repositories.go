// Package outbound defines the driven ports of the application layer.
// Infrastructure adapters implement these; application services depend on
// nothing below this package.
package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/chat"
	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/user"
)

// Repository errors
var (
	ErrNotFound = errors.New("entity not found")
)

// MealRepository persists the meal aggregate.
type MealRepository interface {
	Create(ctx context.Context, m *meal.Meal) error
	Update(ctx context.Context, m *meal.Meal) error

	// UpdateIfStatus persists the meal only if the stored row still has
	// the expected status, and reports whether the write happened. The
	// analysis pipeline uses this to guarantee at most one in-flight
	// transition per meal.
	UpdateIfStatus(ctx context.Context, m *meal.Meal, expected meal.Status) (bool, error)

	FindByID(ctx context.Context, id uuid.UUID) (*meal.Meal, error)

	// FindByUserAndRange returns non-INACTIVE meals consumed within
	// [from, to), ordered by consumed_at ascending.
	FindByUserAndRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*meal.Meal, error)
}

// UserRepository persists the user aggregate.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	Update(ctx context.Context, u *user.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// NotificationRepository persists reminder preferences and push tokens.
type NotificationRepository interface {
	FindPrefs(ctx context.Context, userID uuid.UUID) (*user.NotificationPrefs, error)
	SavePrefs(ctx context.Context, prefs user.NotificationPrefs) error

	// ListEnabledPrefs returns every user whose master toggle is on.
	// The dispatcher scans this once per tick.
	ListEnabledPrefs(ctx context.Context) ([]user.NotificationPrefs, error)

	RegisterToken(ctx context.Context, token user.FcmToken) error
	ActiveTokens(ctx context.Context, userID uuid.UUID) ([]user.FcmToken, error)
	DeactivateToken(ctx context.Context, token string) error
}

// ChatThreadRepository persists conversation threads.
type ChatThreadRepository interface {
	Create(ctx context.Context, t *chat.Thread) error
	Update(ctx context.Context, t *chat.Thread) error
	FindByID(ctx context.Context, id uuid.UUID) (*chat.Thread, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*chat.Thread, error)
}
