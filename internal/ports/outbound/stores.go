package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/suggestion"
)

// Store errors
var (
	ErrCacheMiss       = errors.New("cache miss")
	ErrSessionNotFound = errors.New("suggestion session not found")
	ErrCasConflict     = errors.New("session modified concurrently")
)

// CacheStore is a byte-level cache with TTLs. Adapters degrade
// gracefully: a Redis outage surfaces as ErrCacheMiss on reads and a
// logged no-op on writes, never as a request failure.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error

	// SetNX sets the key only if absent and reports whether it did.
	// Unlike the other writes this must NOT degrade silently: the
	// dispatcher relies on it for once-per-day idempotence.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// SuggestionSessionStore holds suggestion sessions keyed by user, one
// live session per user, expiring with the session TTL.
type SuggestionSessionStore interface {
	// Get returns the live session or ErrSessionNotFound. Expired
	// sessions are treated as absent.
	Get(ctx context.Context, userID uuid.UUID) (*suggestion.Session, error)

	// Put stores a fresh session, replacing any previous one.
	Put(ctx context.Context, s *suggestion.Session) error

	// Mutate applies fn under check-and-set on the session version,
	// retrying on interleaved writers. Exhausted retries surface as
	// ErrCasConflict.
	Mutate(ctx context.Context, userID uuid.UUID, fn func(*suggestion.Session) error) (*suggestion.Session, error)

	Delete(ctx context.Context, userID uuid.UUID) error
}

// ImageStore persists uploaded meal photos and yields a stable reference
// the vision adapter can fetch.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
