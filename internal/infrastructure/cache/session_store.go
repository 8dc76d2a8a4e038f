package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/domain/suggestion"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

const casRetries = 3

// SessionStore keeps suggestion sessions in Redis under
// suggestion_session:{user_id}, expiring with the session TTL. Mutations
// go through WATCH so concurrent writers on the same session retry and
// eventually surface a conflict.
type SessionStore struct {
	client *redis.Client
	clock  outbound.Clock
	logger *zap.Logger
}

// NewSessionStore creates the session store.
func NewSessionStore(client *redis.Client, clock outbound.Clock, logger *zap.Logger) *SessionStore {
	return &SessionStore{client: client, clock: clock, logger: logger.Named("session_store")}
}

func sessionKey(userID uuid.UUID) string {
	return fmt.Sprintf("suggestion_session:%s", userID)
}

func (s *SessionStore) Get(ctx context.Context, userID uuid.UUID) (*suggestion.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, outbound.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.decode(raw)
}

func (s *SessionStore) Put(ctx context.Context, sess *suggestion.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(sess.UserID), raw, s.ttl(sess)).Err()
}

// Mutate applies fn under WATCH. The closure sees the freshest copy on
// every attempt; losing the race three times returns ErrCasConflict.
func (s *SessionStore) Mutate(ctx context.Context, userID uuid.UUID, fn func(*suggestion.Session) error) (*suggestion.Session, error) {
	key := sessionKey(userID)
	var updated *suggestion.Session

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return outbound.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		sess, err := s.decode(raw)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
		sess.Version++

		out, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl(sess))
			return nil
		})
		if err == nil {
			updated = sess
		}
		return err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("session cas race, retrying",
				zap.String("user_id", userID.String()), zap.Int("attempt", attempt+1))
			continue
		}
		return nil, err
	}
	return nil, outbound.ErrCasConflict
}

func (s *SessionStore) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, sessionKey(userID)).Err()
}

// decode enforces expiry on read so a stale key behaves as absent even
// before Redis evicts it.
func (s *SessionStore) decode(raw []byte) (*suggestion.Session, error) {
	var sess suggestion.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	if sess.IsExpired(s.clock.Now()) {
		return nil, outbound.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *SessionStore) ttl(sess *suggestion.Session) time.Duration {
	ttl := sess.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}
