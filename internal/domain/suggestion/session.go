// Package suggestion contains the suggestion session aggregate. Sessions
// are transient and Redis-resident; losing one is recoverable by
// regeneration, so the type is designed around JSON serialization and
// optimistic versioning rather than repository rehydration.
package suggestion

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session limits
const (
	MaxActive     = 3
	SessionTTL    = 4 * time.Hour
	MinMultiplier = 1
	MaxMultiplier = 4
)

// Domain errors for suggestion sessions
var (
	ErrSuggestionNotFound  = errors.New("suggestion not in active set")
	ErrInvalidMultiplier   = errors.New("portion multiplier must be an integer in [1,4]")
	ErrActiveLimitExceeded = errors.New("session holds at most 3 active suggestions")
	ErrSeenFingerprint     = errors.New("suggestion fingerprint already seen in this session")
)

// Source marks where a suggestion came from
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// MacroEstimate is the per-portion macro estimate of a suggestion
type MacroEstimate struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Scale multiplies the estimate by an integer portion multiplier
func (m MacroEstimate) Scale(multiplier int) MacroEstimate {
	f := float64(multiplier)
	return MacroEstimate{
		Calories: m.Calories * f,
		Protein:  m.Protein * f,
		Carbs:    m.Carbs * f,
		Fat:      m.Fat * f,
	}
}

// Suggestion is a single AI- or fallback-generated meal idea
type Suggestion struct {
	ID            uuid.UUID     `json:"id"`
	Fingerprint   string        `json:"fingerprint"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Ingredients   []string      `json:"ingredients"`
	MacroEstimate MacroEstimate `json:"macro_estimate"`
	PortionType   string        `json:"portion_type"`
	Source        Source        `json:"source"`
}

// OutcomeKind is what the user did with a suggestion
type OutcomeKind string

const (
	OutcomeAccepted    OutcomeKind = "accepted"
	OutcomeRejected    OutcomeKind = "rejected"
	OutcomeRegenerated OutcomeKind = "regenerated"
)

// Outcome records the user's decision on a suggestion
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	Multiplier int         `json:"multiplier,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// HistoryEntry is one retired suggestion with its outcome
type HistoryEntry struct {
	Suggestion Suggestion `json:"suggestion"`
	Outcome    Outcome    `json:"outcome"`
	At         time.Time  `json:"at"`
}

// Session is the user-scoped suggestion state. Mutations are serialized
// per session id through check-and-set on Version; handlers must bump
// Version before writing back.
type Session struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Version   int64          `json:"version"`
	Language  string         `json:"language"`
	Seen      map[string]bool `json:"seen"`
	Active    []Suggestion   `json:"active"`
	History   []HistoryEntry `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// NewSession creates an empty session expiring SessionTTL from now
func NewSession(id, userID uuid.UUID, language string, now time.Time) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		Version:   1,
		Language:  language,
		Seen:      make(map[string]bool),
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}
}

// IsExpired reports whether any read must treat the session as absent
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsOwnedBy verifies session ownership
func (s *Session) IsOwnedBy(userID uuid.UUID) bool {
	return s.UserID == userID
}

// AddActive appends fresh suggestions, enforcing the active cap and the
// disjointness of active fingerprints from the seen set.
func (s *Session) AddActive(suggestions ...Suggestion) error {
	if len(s.Active)+len(suggestions) > MaxActive {
		return ErrActiveLimitExceeded
	}
	for _, sug := range suggestions {
		if s.Seen[sug.Fingerprint] {
			return ErrSeenFingerprint
		}
	}
	s.Active = append(s.Active, suggestions...)
	return nil
}

// Rotate retires the whole active set as "regenerated", marking every
// fingerprint as seen. Called before a regeneration round.
func (s *Session) Rotate(now time.Time) {
	for _, sug := range s.Active {
		s.Seen[sug.Fingerprint] = true
		s.History = append(s.History, HistoryEntry{
			Suggestion: sug,
			Outcome:    Outcome{Kind: OutcomeRegenerated},
			At:         now,
		})
	}
	s.Active = nil
}

// Accept removes a suggestion from the active set with an accepted
// outcome and returns it so the caller can materialize a meal. The
// active set is not refilled automatically.
func (s *Session) Accept(suggestionID uuid.UUID, multiplier int, now time.Time) (Suggestion, error) {
	if multiplier < MinMultiplier || multiplier > MaxMultiplier {
		return Suggestion{}, ErrInvalidMultiplier
	}
	sug, err := s.takeActive(suggestionID)
	if err != nil {
		return Suggestion{}, err
	}
	s.Seen[sug.Fingerprint] = true
	s.History = append(s.History, HistoryEntry{
		Suggestion: sug,
		Outcome:    Outcome{Kind: OutcomeAccepted, Multiplier: multiplier},
		At:         now,
	})
	return sug, nil
}

// Reject removes a suggestion from the active set with a rejected
// outcome and records its fingerprint as seen.
func (s *Session) Reject(suggestionID uuid.UUID, reason string, now time.Time) (Suggestion, error) {
	sug, err := s.takeActive(suggestionID)
	if err != nil {
		return Suggestion{}, err
	}
	s.Seen[sug.Fingerprint] = true
	s.History = append(s.History, HistoryEntry{
		Suggestion: sug,
		Outcome:    Outcome{Kind: OutcomeRejected, Reason: reason},
		At:         now,
	})
	return sug, nil
}

// SeenFingerprints returns the seen set as a slice, for prompt exclusion
// lists and fallback filtering.
func (s *Session) SeenFingerprints() []string {
	out := make([]string, 0, len(s.Seen))
	for fp := range s.Seen {
		out = append(out, fp)
	}
	return out
}

// SeenNames returns representative names for seen suggestions, drawn
// from history, so prompts can say "avoid these" in words the model
// understands.
func (s *Session) SeenNames() []string {
	var names []string
	for _, entry := range s.History {
		if s.Seen[entry.Suggestion.Fingerprint] {
			names = append(names, entry.Suggestion.Name)
		}
	}
	return names
}

func (s *Session) takeActive(suggestionID uuid.UUID) (Suggestion, error) {
	for i, sug := range s.Active {
		if sug.ID == suggestionID {
			s.Active = append(s.Active[:i], s.Active[i+1:]...)
			return sug, nil
		}
	}
	return Suggestion{}, ErrSuggestionNotFound
}
