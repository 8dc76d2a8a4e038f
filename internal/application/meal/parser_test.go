package meal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrisnap/v2/internal/domain/meal"
)

const wellFormed = `{"dish_name":"chicken rice","items":[` +
	`{"name":"chicken breast","quantity":150,"unit":"g","calories":248,"protein":46,"carbs":0,"fat":5,"confidence":0.9},` +
	`{"name":"white rice","quantity":1,"unit":"cup","calories":205,"protein":4,"carbs":45,"fat":0.4,"confidence":0.85}]}`

func TestParseAnalysisResponse(t *testing.T) {
	t.Run("DirectJSON", func(t *testing.T) {
		result, err := ParseAnalysisResponse(wellFormed)

		require.NoError(t, err)
		assert.Equal(t, "chicken rice", result.DishName)
		require.Len(t, result.Items, 2)
		assert.Equal(t, "chicken breast", result.Items[0].Name)
	})

	t.Run("MarkdownFenced", func(t *testing.T) {
		result, err := ParseAnalysisResponse("```json\n" + wellFormed + "\n```")

		require.NoError(t, err)
		assert.Len(t, result.Items, 2)
	})

	t.Run("FencedWithoutLanguageTag", func(t *testing.T) {
		result, err := ParseAnalysisResponse("```\n" + wellFormed + "\n```")

		require.NoError(t, err)
		assert.Len(t, result.Items, 2)
	})

	t.Run("SurroundingProse", func(t *testing.T) {
		raw := "Here is the analysis you asked for:\n" + wellFormed + "\nLet me know if you need more."

		result, err := ParseAnalysisResponse(raw)

		require.NoError(t, err)
		assert.Len(t, result.Items, 2)
	})

	t.Run("TruncatedMidValue_ClosesBrackets", func(t *testing.T) {
		raw := `{"dish_name":"salad","items":[{"name":"lettuce","quantity":50,"unit":"g","calories":8,"protein":0.5,"carbs":1.5,"fat":0.1,"confidence":0.8}`

		result, err := ParseAnalysisResponse(raw)

		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "lettuce", result.Items[0].Name)
	})

	t.Run("TruncatedMidString_RepairsPartialItem", func(t *testing.T) {
		raw := `{"dish_name":"salad","items":[{"name":"lettuce","quantity":50,"unit":"g","calories":8,"protein":0.5,"carbs":1.5,"fat":0.1,"confidence":0.8},{"name":"toma`

		result, err := ParseAnalysisResponse(raw)

		require.NoError(t, err)
		require.Len(t, result.Items, 2)
		assert.Equal(t, "toma", result.Items[1].Name)
	})

	t.Run("TruncatedMidKey_DropsPartialItem", func(t *testing.T) {
		raw := `{"dish_name":"salad","items":[{"name":"lettuce","quantity":50,"unit":"g","calories":8,"protein":0.5,"carbs":1.5,"fat":0.1,"confidence":0.8},{"name"`

		result, err := ParseAnalysisResponse(raw)

		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "lettuce", result.Items[0].Name)
	})

	t.Run("TruncatedMidName_KeepsPartialName", func(t *testing.T) {
		raw := `{"dish_name":"salad","items":[{"name":"lettu`

		result, err := ParseAnalysisResponse(raw)

		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "lettu", result.Items[0].Name)
	})

	t.Run("ContentBlockedMarker", func(t *testing.T) {
		_, err := ParseAnalysisResponse(`{"error":"content_blocked"}`)

		assert.ErrorIs(t, err, ErrContentBlocked)
	})

	t.Run("ProseRefusal", func(t *testing.T) {
		_, err := ParseAnalysisResponse("I cannot analyze images of that nature.")

		assert.ErrorIs(t, err, ErrContentBlocked)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ParseAnalysisResponse("the quick brown fox {]")

		assert.ErrorIs(t, err, ErrUnparseable)
	})
}

func TestSelectStrategy(t *testing.T) {
	cases := []struct {
		name  string
		hints meal.AnalysisHints
		want  string
	}{
		{"NoHints", meal.AnalysisHints{}, StrategyBasic},
		{"PortionOnly", meal.AnalysisHints{PortionHint: "200 g"}, StrategyPortion},
		{"IngredientsOnly", meal.AnalysisHints{Ingredients: []string{"rice", "egg"}}, StrategyIngredient},
		{"WeightOnly", meal.AnalysisHints{TotalWeightG: 350}, StrategyWeight},
		{"DescriptionOnly", meal.AnalysisHints{Description: "leftover stir fry"}, StrategyUserContext},
		{"TwoHints", meal.AnalysisHints{PortionHint: "1 cup", TotalWeightG: 300}, StrategyCombined},
		{"AllHints", meal.AnalysisHints{
			PortionHint:  "1 cup",
			Ingredients:  []string{"rice"},
			TotalWeightG: 300,
			Description:  "fried rice",
		}, StrategyCombined},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, SelectStrategy(c.hints))
		})
	}
}

func TestBuildVisionPromptOrder(t *testing.T) {
	hints := meal.AnalysisHints{
		PortionHint:  "1 bowl",
		Ingredients:  []string{"noodles", "beef"},
		TotalWeightG: 450,
		Description:  "pho from a restaurant",
	}

	_, user := BuildVisionPrompt(hints)

	for _, fragment := range []string{"1 bowl", "noodles", "450", "pho from a restaurant"} {
		assert.Contains(t, user, fragment)
	}
	assert.Less(t, strings.Index(user, "1 bowl"), strings.Index(user, "noodles"))
	assert.Less(t, strings.Index(user, "noodles"), strings.Index(user, "450"))
	assert.Less(t, strings.Index(user, "450"), strings.Index(user, "pho from a restaurant"))
}
