package suggestion

import (
	"fmt"
	"strings"

	"github.com/nutrisnap/v2/internal/domain/user"
)

// languageNames maps supported ISO 639-1 codes to the language name
// used in prompts. Unknown codes fall back to English.
var languageNames = map[string]string{
	"en": "English",
	"vi": "Vietnamese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"ja": "Japanese",
	"zh": "Chinese",
}

// LanguageName resolves an ISO 639-1 code to its prompt name.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return "English"
}

const suggestionSystemPrompt = `You are a nutrition coach generating meal suggestions. Respond with strict JSON only, no markdown, in this shape:
{"suggestions": [{"name": string, "description": string, "ingredients": [string], "calories": number, "protein": number, "carbs": number, "fat": number, "portion_type": string}]}
Macros are per single portion. Every suggestion must respect the user's dietary constraints and allergies without exception.`

// BuildPrompt composes the generation prompt from the user's profile,
// language, and the names of suggestions already seen this session.
func BuildPrompt(profile *user.Profile, language string, count int, avoid []string) (system, userPrompt string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest exactly %d meals in %s.", count, LanguageName(language))

	if profile != nil {
		targets := profile.Targets()
		fmt.Fprintf(&b, " The user's goal is %s (%+.0f kcal/day adjustment), targeting %.0f kcal with %.0fg protein, %.0fg carbs and %.0fg fat daily.",
			profile.Goal, profile.Goal.CalorieAdjustment(),
			targets.Calories, targets.ProteinG, targets.CarbsG, targets.FatG)

		proteinShare, carbShare, fatShare := profile.Goal.MacroSplit()
		fmt.Fprintf(&b, " Aim for a %.0f/%.0f/%.0f protein/carb/fat calorie split.",
			proteinShare*100, carbShare*100, fatShare*100)

		if len(profile.DietaryPreferences) > 0 {
			fmt.Fprintf(&b, " Hard dietary constraints: %s.", strings.Join(profile.DietaryPreferences, ", "))
		}
		if len(profile.Allergies) > 0 {
			fmt.Fprintf(&b, " The user is allergic to: %s. Never include these.", strings.Join(profile.Allergies, ", "))
		}
	} else {
		b.WriteString(" Suggest balanced meals around 500-700 kcal each.")
	}

	if len(avoid) > 0 {
		fmt.Fprintf(&b, " Do not suggest any of these or close variations: %s.", strings.Join(avoid, "; "))
	}

	return suggestionSystemPrompt, b.String()
}
