package suggestion

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSuggestion(name string, ingredients ...string) Suggestion {
	return Suggestion{
		ID:          uuid.New(),
		Fingerprint: Fingerprint(name, ingredients),
		Name:        name,
		Ingredients: ingredients,
		MacroEstimate: MacroEstimate{
			Calories: 500, Protein: 35, Carbs: 50, Fat: 15,
		},
		Source: SourceModel,
	}
}

func TestFingerprint(t *testing.T) {
	t.Run("StableAcrossCaseAndOrder", func(t *testing.T) {
		a := Fingerprint("Grilled Salmon Bowl", []string{"salmon", "rice", "avocado"})
		b := Fingerprint("grilled salmon bowl", []string{"Avocado", "Rice", "Salmon "})
		assert.Equal(t, a, b)
	})

	t.Run("DistinctForDifferentContent", func(t *testing.T) {
		a := Fingerprint("Grilled Salmon Bowl", []string{"salmon", "rice"})
		b := Fingerprint("Grilled Salmon Bowl", []string{"salmon", "quinoa"})
		assert.NotEqual(t, a, b)
	})
}

func TestSessionLifecycle(t *testing.T) {
	now := time.Now().UTC()

	t.Run("NewSession_ExpiresAfterTTL", func(t *testing.T) {
		s := NewSession(uuid.New(), uuid.New(), "en", now)

		assert.Equal(t, now.Add(4*time.Hour), s.ExpiresAt)
		assert.False(t, s.IsExpired(now.Add(4*time.Hour-time.Second)))
		assert.True(t, s.IsExpired(now.Add(4*time.Hour)))
	})

	t.Run("AddActive_EnforcesCap", func(t *testing.T) {
		s := NewSession(uuid.New(), uuid.New(), "en", now)
		require.NoError(t, s.AddActive(newSuggestion("a", "x"), newSuggestion("b", "y"), newSuggestion("c", "z")))

		err := s.AddActive(newSuggestion("d", "w"))
		assert.ErrorIs(t, err, ErrActiveLimitExceeded)
	})

	t.Run("AddActive_RejectsSeenFingerprint", func(t *testing.T) {
		s := NewSession(uuid.New(), uuid.New(), "en", now)
		sug := newSuggestion("pho", "beef", "noodles")
		s.Seen[sug.Fingerprint] = true

		assert.ErrorIs(t, s.AddActive(sug), ErrSeenFingerprint)
	})
}

func TestSessionRotate(t *testing.T) {
	now := time.Now().UTC()
	s := NewSession(uuid.New(), uuid.New(), "en", now)
	a, b, c := newSuggestion("a", "x"), newSuggestion("b", "y"), newSuggestion("c", "z")
	require.NoError(t, s.AddActive(a, b, c))

	s.Rotate(now)

	assert.Empty(t, s.Active)
	assert.Len(t, s.History, 3)
	for _, entry := range s.History {
		assert.Equal(t, OutcomeRegenerated, entry.Outcome.Kind)
	}
	for _, sug := range []Suggestion{a, b, c} {
		assert.True(t, s.Seen[sug.Fingerprint])
	}

	// Invariant: nothing in active may share a fingerprint with seen
	assert.ErrorIs(t, s.AddActive(a), ErrSeenFingerprint)
}

func TestSessionAccept(t *testing.T) {
	now := time.Now().UTC()

	t.Run("ValidMultiplier_MovesToHistory", func(t *testing.T) {
		s := NewSession(uuid.New(), uuid.New(), "en", now)
		sug := newSuggestion("bun cha", "pork", "noodles")
		require.NoError(t, s.AddActive(sug))

		accepted, err := s.Accept(sug.ID, 2, now)

		require.NoError(t, err)
		assert.Equal(t, sug.ID, accepted.ID)
		assert.Empty(t, s.Active)
		require.Len(t, s.History, 1)
		assert.Equal(t, OutcomeAccepted, s.History[0].Outcome.Kind)
		assert.Equal(t, 2, s.History[0].Outcome.Multiplier)
		assert.True(t, s.Seen[sug.Fingerprint])
	})

	t.Run("SecondAccept_NotFound", func(t *testing.T) {
		s := NewSession(uuid.New(), uuid.New(), "en", now)
		sug := newSuggestion("bun cha", "pork")
		require.NoError(t, s.AddActive(sug))

		_, err := s.Accept(sug.ID, 1, now)
		require.NoError(t, err)

		_, err = s.Accept(sug.ID, 1, now)
		assert.ErrorIs(t, err, ErrSuggestionNotFound)
	})

	t.Run("MultiplierOutOfRange_Rejected", func(t *testing.T) {
		s := NewSession(uuid.New(), uuid.New(), "en", now)
		sug := newSuggestion("bun cha", "pork")
		require.NoError(t, s.AddActive(sug))

		for _, multiplier := range []int{0, 5, -1} {
			_, err := s.Accept(sug.ID, multiplier, now)
			assert.ErrorIs(t, err, ErrInvalidMultiplier)
		}
		assert.Len(t, s.Active, 1, "failed accept must not consume the suggestion")
	})
}

func TestSessionReject(t *testing.T) {
	now := time.Now().UTC()
	s := NewSession(uuid.New(), uuid.New(), "en", now)
	sug := newSuggestion("banh mi", "bread", "pate")
	require.NoError(t, s.AddActive(sug))

	rejected, err := s.Reject(sug.ID, "too heavy", now)

	require.NoError(t, err)
	assert.Equal(t, sug.Fingerprint, rejected.Fingerprint)
	require.Len(t, s.History, 1)
	assert.Equal(t, OutcomeRejected, s.History[0].Outcome.Kind)
	assert.Equal(t, "too heavy", s.History[0].Outcome.Reason)
	assert.True(t, s.Seen[sug.Fingerprint])
}

func TestMacroEstimateScale(t *testing.T) {
	base := MacroEstimate{Calories: 400, Protein: 30, Carbs: 40, Fat: 12}

	scaled := base.Scale(3)

	assert.InDelta(t, 1200, scaled.Calories, 0.001)
	assert.InDelta(t, 90, scaled.Protein, 0.001)
	assert.InDelta(t, 120, scaled.Carbs, 0.001)
	assert.InDelta(t, 36, scaled.Fat, 0.001)
}
