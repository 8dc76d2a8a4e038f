package meal

import (
	"fmt"
	"strings"

	"github.com/nutrisnap/v2/internal/domain/meal"
)

// Analysis strategy names, stored on the meal for observability.
const (
	StrategyBasic       = "basic"
	StrategyPortion     = "portion_aware"
	StrategyIngredient  = "ingredient_aware"
	StrategyWeight      = "weight_aware"
	StrategyUserContext = "user_context_aware"
	StrategyCombined    = "combined"
)

const visionSystemPrompt = `You are a nutrition analysis assistant. Identify every food item in the photo and estimate its macros. Respond with strict JSON only, no markdown, in this shape:
{"dish_name": string, "items": [{"name": string, "quantity": number, "unit": string, "calories": number, "protein": number, "carbs": number, "fat": number, "fiber": number, "confidence": number}]}
Quantities are edible portions. Confidence is 0 to 1. If no food is visible return {"dish_name": "", "items": []}.`

// SelectStrategy picks the analysis strategy from the hints supplied at
// upload time. Two or more hints combine.
func SelectStrategy(h meal.AnalysisHints) string {
	var present []string
	if h.PortionHint != "" {
		present = append(present, StrategyPortion)
	}
	if len(h.Ingredients) > 0 {
		present = append(present, StrategyIngredient)
	}
	if h.TotalWeightG > 0 {
		present = append(present, StrategyWeight)
	}
	if h.Description != "" {
		present = append(present, StrategyUserContext)
	}

	switch len(present) {
	case 0:
		return StrategyBasic
	case 1:
		return present[0]
	default:
		return StrategyCombined
	}
}

// BuildVisionPrompt renders the user prompt for a strategy. Hint
// augmentations are appended in a fixed order so combined prompts are
// deterministic.
func BuildVisionPrompt(h meal.AnalysisHints) (system, user string) {
	var b strings.Builder
	b.WriteString("Analyze the attached meal photo.")

	if h.PortionHint != "" {
		fmt.Fprintf(&b, " The portion size is %q; scale all quantities and macros from it.", h.PortionHint)
	}
	if len(h.Ingredients) > 0 {
		fmt.Fprintf(&b, " The meal contains only these ingredients: %s. Do not identify anything outside this list.", strings.Join(h.Ingredients, ", "))
	}
	if h.TotalWeightG > 0 {
		fmt.Fprintf(&b, " The total weight of the meal is %.0f grams; distribute it across the detected items.", h.TotalWeightG)
	}
	if h.Description != "" {
		fmt.Fprintf(&b, " The user describes the meal as: %q.", h.Description)
	}

	return visionSystemPrompt, b.String()
}
