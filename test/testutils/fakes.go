// Package testutils provides in-memory port implementations and data
// factories shared across application-layer tests.
package testutils

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/chat"
	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/suggestion"
	"github.com/nutrisnap/v2/internal/domain/user"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// FixedClock returns a constant instant.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// MemMealRepo is an in-memory MealRepository with conditional-update
// semantics matching the SQL adapter.
type MemMealRepo struct {
	mu     sync.Mutex
	meals  map[uuid.UUID]*meal.Meal
	status map[uuid.UUID]meal.Status
}

func NewMemMealRepo() *MemMealRepo {
	return &MemMealRepo{
		meals:  make(map[uuid.UUID]*meal.Meal),
		status: make(map[uuid.UUID]meal.Status),
	}
}

func (r *MemMealRepo) Create(ctx context.Context, m *meal.Meal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meals[m.ID()] = m
	r.status[m.ID()] = m.Status()
	return nil
}

func (r *MemMealRepo) Update(ctx context.Context, m *meal.Meal) error {
	return r.Create(ctx, m)
}

func (r *MemMealRepo) UpdateIfStatus(ctx context.Context, m *meal.Meal, expected meal.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status[m.ID()] != expected {
		return false, nil
	}
	r.meals[m.ID()] = m
	r.status[m.ID()] = m.Status()
	return true, nil
}

func (r *MemMealRepo) FindByID(ctx context.Context, id uuid.UUID) (*meal.Meal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meals[id]
	if !ok {
		return nil, outbound.ErrNotFound
	}
	return m, nil
}

func (r *MemMealRepo) FindByUserAndRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*meal.Meal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*meal.Meal
	for _, m := range r.meals {
		if m.UserID() == userID && m.Status() != meal.StatusInactive &&
			!m.ConsumedAt().Before(from) && m.ConsumedAt().Before(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

// MemUserRepo is an in-memory UserRepository.
type MemUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func NewMemUserRepo(users ...*user.User) *MemUserRepo {
	r := &MemUserRepo{users: make(map[uuid.UUID]*user.User)}
	for _, u := range users {
		r.users[u.ID()] = u
	}
	return r
}

func (r *MemUserRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID()] = u
	return nil
}

func (r *MemUserRepo) Update(ctx context.Context, u *user.User) error {
	return r.Create(ctx, u)
}

func (r *MemUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, outbound.ErrNotFound
	}
	return u, nil
}

// MemCache is an in-memory CacheStore. Pattern deletion supports a
// single trailing asterisk, matching how the codebase uses it.
type MemCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemCache() *MemCache { return &MemCache{data: make(map[string][]byte)} }

func (c *MemCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, outbound.ErrCacheMiss
	}
	return v, nil
}

func (c *MemCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *MemCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *MemCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *MemCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

// Len reports the number of stored keys.
func (c *MemCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// MemSessionStore is an in-memory SuggestionSessionStore. Set
// ConflictsToInject to make the next Mutate calls lose the CAS race.
type MemSessionStore struct {
	mu                sync.Mutex
	sessions          map[uuid.UUID]*suggestion.Session
	ConflictsToInject int
}

func NewMemSessionStore() *MemSessionStore {
	return &MemSessionStore{sessions: make(map[uuid.UUID]*suggestion.Session)}
}

func (s *MemSessionStore) Get(ctx context.Context, userID uuid.UUID) (*suggestion.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok || sess.IsExpired(time.Now().UTC()) {
		return nil, outbound.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *MemSessionStore) Put(ctx context.Context, sess *suggestion.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = cloneSession(sess)
	return nil
}

func (s *MemSessionStore) Mutate(ctx context.Context, userID uuid.UUID, fn func(*suggestion.Session) error) (*suggestion.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ConflictsToInject > 0 {
		s.ConflictsToInject--
		return nil, outbound.ErrCasConflict
	}
	sess, ok := s.sessions[userID]
	if !ok || sess.IsExpired(time.Now().UTC()) {
		return nil, outbound.ErrSessionNotFound
	}
	working := cloneSession(sess)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.Version++
	s.sessions[userID] = working
	return cloneSession(working), nil
}

func (s *MemSessionStore) Delete(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func cloneSession(sess *suggestion.Session) *suggestion.Session {
	data, _ := json.Marshal(sess)
	var out suggestion.Session
	_ = json.Unmarshal(data, &out)
	return &out
}

// MemThreadRepo is an in-memory ChatThreadRepository.
type MemThreadRepo struct {
	mu      sync.Mutex
	threads map[uuid.UUID]*chat.Thread
}

func NewMemThreadRepo() *MemThreadRepo {
	return &MemThreadRepo{threads: make(map[uuid.UUID]*chat.Thread)}
}

func (r *MemThreadRepo) Create(ctx context.Context, t *chat.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[t.ID()] = t
	return nil
}

func (r *MemThreadRepo) Update(ctx context.Context, t *chat.Thread) error {
	return r.Create(ctx, t)
}

func (r *MemThreadRepo) FindByID(ctx context.Context, id uuid.UUID) (*chat.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, outbound.ErrNotFound
	}
	return t, nil
}

func (r *MemThreadRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*chat.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*chat.Thread
	for _, t := range r.threads {
		if t.UserID() == userID {
			out = append(out, t)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MemNotificationRepo is an in-memory NotificationRepository.
type MemNotificationRepo struct {
	mu     sync.Mutex
	prefs  map[uuid.UUID]user.NotificationPrefs
	tokens map[string]user.FcmToken
}

func NewMemNotificationRepo() *MemNotificationRepo {
	return &MemNotificationRepo{
		prefs:  make(map[uuid.UUID]user.NotificationPrefs),
		tokens: make(map[string]user.FcmToken),
	}
}

func (r *MemNotificationRepo) FindPrefs(ctx context.Context, userID uuid.UUID) (*user.NotificationPrefs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prefs[userID]
	if !ok {
		return nil, outbound.ErrNotFound
	}
	return &p, nil
}

func (r *MemNotificationRepo) SavePrefs(ctx context.Context, prefs user.NotificationPrefs) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[prefs.UserID] = prefs
	return nil
}

func (r *MemNotificationRepo) ListEnabledPrefs(ctx context.Context) ([]user.NotificationPrefs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []user.NotificationPrefs
	for _, p := range r.prefs {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemNotificationRepo) RegisterToken(ctx context.Context, token user.FcmToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.IsActive = true
	r.tokens[token.Token] = token
	return nil
}

func (r *MemNotificationRepo) ActiveTokens(ctx context.Context, userID uuid.UUID) ([]user.FcmToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []user.FcmToken
	for _, t := range r.tokens {
		if t.UserID == userID && t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MemNotificationRepo) DeactivateToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[token]; ok {
		t.IsActive = false
		r.tokens[token] = t
	}
	return nil
}

// TokenActive reports the stored activation state of a token.
func (r *MemNotificationRepo) TokenActive(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	return ok && t.IsActive
}
