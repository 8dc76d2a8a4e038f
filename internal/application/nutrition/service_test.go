package nutrition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	byNamespace map[string][]outbound.VectorMatch
}

func (f fakeIndex) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]outbound.VectorMatch, error) {
	return f.byNamespace[namespace], nil
}

type nopCache struct{}

func (nopCache) Get(ctx context.Context, key string) ([]byte, error) { return nil, outbound.ErrCacheMiss }
func (nopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (nopCache) Delete(ctx context.Context, keys ...string) error             { return nil }
func (nopCache) DeletePattern(ctx context.Context, pattern string) error      { return nil }
func (nopCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return true, nil
}

func match(name string, score float64, calories float64) outbound.VectorMatch {
	return outbound.VectorMatch{
		Name:  name,
		Score: score,
		Per100g: outbound.Per100g{
			Calories: calories, Protein: 10, Carbs: 20, Fat: 5, Fiber: 2,
		},
	}
}

func newService(index fakeIndex) *Service {
	return NewService(fakeEmbedder{}, index, nopCache{}, zap.NewNop())
}

func TestLookupCascade(t *testing.T) {
	ctx := context.Background()

	t.Run("CuratedAboveAccept_Wins", func(t *testing.T) {
		s := newService(fakeIndex{byNamespace: map[string][]outbound.VectorMatch{
			outbound.NamespaceIngredients: {match("chicken breast", 0.82, 165)},
			outbound.NamespaceUSDA:        {match("chicken, broiler", 0.95, 150)},
		}})

		result := s.Lookup(ctx, "chicken breast", 100, "g")

		require.NotNil(t, result)
		assert.Equal(t, meal.ProvenanceIndex, result.Provenance)
		assert.Equal(t, "chicken breast", result.MatchedName)
	})

	t.Run("MidScore_HigherUsdaWins", func(t *testing.T) {
		s := newService(fakeIndex{byNamespace: map[string][]outbound.VectorMatch{
			outbound.NamespaceIngredients: {match("tofu", 0.45, 76)},
			outbound.NamespaceUSDA:        {match("tofu, firm", 0.58, 78)},
		}})

		result := s.Lookup(ctx, "firm tofu", 100, "g")

		require.NotNil(t, result)
		assert.Equal(t, meal.ProvenanceUSDA, result.Provenance)
	})

	t.Run("MidScore_CuratedKeepsTie", func(t *testing.T) {
		s := newService(fakeIndex{byNamespace: map[string][]outbound.VectorMatch{
			outbound.NamespaceIngredients: {match("tofu", 0.45, 76)},
			outbound.NamespaceUSDA:        {match("tofu, firm", 0.40, 78)},
		}})

		result := s.Lookup(ctx, "tofu", 100, "g")

		require.NotNil(t, result)
		assert.Equal(t, meal.ProvenanceIndex, result.Provenance)
	})

	t.Run("CuratedBelowFloor_UsdaQualifies", func(t *testing.T) {
		s := newService(fakeIndex{byNamespace: map[string][]outbound.VectorMatch{
			outbound.NamespaceIngredients: {match("noise", 0.12, 0)},
			outbound.NamespaceUSDA:        {match("jackfruit, raw", 0.41, 95)},
		}})

		result := s.Lookup(ctx, "jackfruit", 100, "g")

		require.NotNil(t, result)
		assert.Equal(t, meal.ProvenanceUSDA, result.Provenance)
	})

	t.Run("NothingQualifies_Nil", func(t *testing.T) {
		s := newService(fakeIndex{byNamespace: map[string][]outbound.VectorMatch{
			outbound.NamespaceIngredients: {match("noise", 0.12, 0)},
			outbound.NamespaceUSDA:        {match("noise", 0.20, 0)},
		}})

		assert.Nil(t, s.Lookup(ctx, "homemade mystery stew", 100, "g"))
	})

	t.Run("EmbeddingFailure_Nil", func(t *testing.T) {
		s := NewService(fakeEmbedder{err: errors.New("provider down")}, fakeIndex{}, nopCache{}, zap.NewNop())

		assert.Nil(t, s.Lookup(ctx, "rice", 100, "g"))
	})
}

func TestLookupPortionScaling(t *testing.T) {
	s := newService(fakeIndex{byNamespace: map[string][]outbound.VectorMatch{
		outbound.NamespaceIngredients: {match("oats", 0.90, 380)},
	}})

	result := s.Lookup(context.Background(), "oats", 1, "cup")

	require.NotNil(t, result)
	// 1 cup = 240 g, so 2.4x the per-100g values
	assert.InDelta(t, 912, result.Calories, 0.001)
	assert.InDelta(t, 24, result.Protein, 0.001)
}

func TestPortionGrams(t *testing.T) {
	cases := []struct {
		quantity float64
		unit     string
		want     float64
		approx   bool
	}{
		{150, "g", 150, false},
		{1, "kg", 1000, false},
		{2, "oz", 56.699, false},
		{1, "lb", 453.592, false},
		{1, "cup", 240, false},
		{2, "tbsp", 30, false},
		{3, "tsp", 15, false},
		{250, "ml", 250, false},
		{1, "serving", 100, true},
		{2, "", 200, true},
		{1, "plate", 100, true},
	}
	for _, c := range cases {
		grams, approx := PortionGrams(c.quantity, c.unit)
		assert.InDelta(t, c.want, grams, 0.001, "unit %q", c.unit)
		assert.Equal(t, c.approx, approx, "unit %q", c.unit)
	}
}

func TestUnknownUnitDegradesConfidence(t *testing.T) {
	s := newService(fakeIndex{byNamespace: map[string][]outbound.VectorMatch{
		outbound.NamespaceIngredients: {match("paella", 0.88, 160)},
	}})

	result := s.Lookup(context.Background(), "paella", 1, "plate")

	require.NotNil(t, result)
	// The match still supplies macros at the 100 g fallback, but the
	// guessed portion pins confidence to the model floor.
	assert.True(t, result.Approximate)
	assert.Equal(t, meal.ProvenanceModel, result.Provenance)
	assert.InDelta(t, 160, result.Calories, 0.001)
}
