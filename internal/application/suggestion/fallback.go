package suggestion

import (
	"hash/fnv"
	"strings"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/suggestion"
	"github.com/nutrisnap/v2/internal/domain/user"
)

// fallbackMeal is one entry of the deterministic library served when
// the model times out or fails.
type fallbackMeal struct {
	name        string
	description string
	ingredients []string
	portionType string
	calories    float64
	protein     float64
	carbs       float64
	fat         float64
	tags        []string
}

func (f fallbackMeal) hasTag(tag string) bool {
	for _, t := range f.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// fallbackLibrary is the in-process suggestion pool. Tags mark the
// dietary constraints each meal satisfies.
var fallbackLibrary = []fallbackMeal{
	{"Grilled chicken rice bowl", "Grilled chicken breast over jasmine rice with steamed broccoli", []string{"chicken breast", "jasmine rice", "broccoli", "olive oil"}, "bowl", 520, 42, 55, 12, []string{"gluten_free", "dairy_free"}},
	{"Salmon and quinoa salad", "Pan-seared salmon on a quinoa and spinach salad", []string{"salmon", "quinoa", "spinach", "lemon", "olive oil"}, "plate", 560, 38, 42, 22, []string{"gluten_free", "dairy_free", "pescatarian"}},
	{"Beef stir fry with vegetables", "Lean beef strips stir-fried with mixed vegetables and rice", []string{"beef sirloin", "bell pepper", "onion", "rice", "soy sauce"}, "plate", 590, 40, 58, 18, []string{"dairy_free"}},
	{"Greek yogurt parfait", "Greek yogurt layered with berries, honey and granola", []string{"greek yogurt", "blueberries", "strawberries", "honey", "granola"}, "glass", 340, 22, 48, 7, []string{"vegetarian"}},
	{"Tofu vegetable curry", "Firm tofu simmered in coconut curry with vegetables over rice", []string{"tofu", "coconut milk", "curry paste", "zucchini", "rice"}, "bowl", 540, 24, 60, 22, []string{"vegan", "vegetarian", "gluten_free", "dairy_free"}},
	{"Turkey avocado wrap", "Whole-wheat wrap with sliced turkey, avocado and greens", []string{"turkey breast", "whole wheat tortilla", "avocado", "lettuce", "tomato"}, "wrap", 470, 34, 42, 18, []string{"dairy_free"}},
	{"Shrimp garlic noodles", "Stir-fried shrimp with rice noodles and garlic", []string{"shrimp", "rice noodles", "garlic", "scallion", "fish sauce"}, "bowl", 510, 32, 62, 12, []string{"gluten_free", "dairy_free", "pescatarian"}},
	{"Egg fried rice", "Fried rice with eggs, peas and carrots", []string{"rice", "egg", "peas", "carrot", "sesame oil"}, "bowl", 480, 18, 64, 15, []string{"vegetarian", "gluten_free", "dairy_free"}},
	{"Lentil soup with bread", "Hearty red lentil soup with a slice of sourdough", []string{"red lentils", "carrot", "celery", "onion", "sourdough bread"}, "bowl", 420, 22, 64, 8, []string{"vegan", "vegetarian", "dairy_free"}},
	{"Baked cod with potatoes", "Oven-baked cod with roasted baby potatoes and green beans", []string{"cod", "baby potatoes", "green beans", "olive oil", "lemon"}, "plate", 450, 36, 44, 13, []string{"gluten_free", "dairy_free", "pescatarian"}},
	{"Chicken caesar salad", "Romaine with grilled chicken, parmesan and caesar dressing", []string{"chicken breast", "romaine lettuce", "parmesan", "caesar dressing", "croutons"}, "plate", 510, 38, 22, 30, nil},
	{"Pork banh mi bowl", "Deconstructed banh mi with grilled pork, pickled vegetables and rice", []string{"pork shoulder", "rice", "pickled carrot", "cucumber", "cilantro"}, "bowl", 580, 34, 62, 20, []string{"dairy_free"}},
	{"Oatmeal with banana and peanut butter", "Rolled oats cooked with milk, topped with banana and peanut butter", []string{"rolled oats", "milk", "banana", "peanut butter"}, "bowl", 460, 17, 62, 17, []string{"vegetarian"}},
	{"Chickpea spinach stew", "Spiced chickpeas stewed with spinach and tomatoes", []string{"chickpeas", "spinach", "tomato", "cumin", "olive oil"}, "bowl", 410, 18, 56, 13, []string{"vegan", "vegetarian", "gluten_free", "dairy_free"}},
	{"Tuna poke bowl", "Ahi tuna over sushi rice with edamame and avocado", []string{"ahi tuna", "sushi rice", "edamame", "avocado", "soy sauce"}, "bowl", 550, 36, 58, 18, []string{"dairy_free", "pescatarian"}},
	{"Cottage cheese power bowl", "Cottage cheese with cherry tomatoes, cucumber and seeds", []string{"cottage cheese", "cherry tomatoes", "cucumber", "pumpkin seeds"}, "bowl", 310, 28, 16, 15, []string{"vegetarian", "gluten_free"}},
	{"Chicken pho", "Vietnamese noodle soup with chicken and herbs", []string{"chicken", "rice noodles", "bean sprouts", "basil", "lime"}, "bowl", 440, 32, 54, 9, []string{"gluten_free", "dairy_free"}},
	{"Black bean burrito bowl", "Black beans, rice, corn salsa and guacamole", []string{"black beans", "rice", "corn", "guacamole", "salsa"}, "bowl", 530, 19, 74, 18, []string{"vegan", "vegetarian", "gluten_free", "dairy_free"}},
	{"Grilled steak with sweet potato", "Flank steak with roasted sweet potato and asparagus", []string{"flank steak", "sweet potato", "asparagus", "olive oil"}, "plate", 560, 42, 42, 22, []string{"gluten_free", "dairy_free"}},
	{"Egg white omelette with toast", "Egg white omelette with mushrooms, side of whole-grain toast", []string{"egg whites", "mushrooms", "spinach", "whole grain bread"}, "plate", 320, 28, 34, 7, []string{"vegetarian", "dairy_free"}},
	{"Miso salmon with soba", "Miso-glazed salmon over soba noodles and bok choy", []string{"salmon", "soba noodles", "bok choy", "miso paste"}, "plate", 570, 38, 56, 19, []string{"dairy_free", "pescatarian"}},
	{"Paneer tikka with rice", "Grilled paneer in spiced yogurt marinade with basmati rice", []string{"paneer", "yogurt", "basmati rice", "bell pepper", "garam masala"}, "plate", 600, 26, 62, 27, []string{"vegetarian", "gluten_free"}},
	{"Turkey chili", "Ground turkey chili with kidney beans and tomatoes", []string{"ground turkey", "kidney beans", "tomato", "chili powder", "onion"}, "bowl", 470, 38, 44, 15, []string{"gluten_free", "dairy_free"}},
	{"Vegan buddha bowl", "Roasted vegetables, hummus and farro", []string{"farro", "hummus", "roasted cauliflower", "kale", "tahini"}, "bowl", 520, 17, 68, 20, []string{"vegan", "vegetarian", "dairy_free"}},
	{"Chicken teriyaki with rice", "Teriyaki-glazed chicken thigh with rice and cucumber salad", []string{"chicken thigh", "rice", "teriyaki sauce", "cucumber", "sesame seeds"}, "plate", 610, 36, 70, 19, []string{"dairy_free"}},
	{"Caprese sandwich", "Mozzarella, tomato and basil on ciabatta", []string{"mozzarella", "tomato", "basil", "ciabatta", "balsamic"}, "sandwich", 480, 21, 52, 21, []string{"vegetarian"}},
	{"Shrimp and grits", "Sauteed shrimp over creamy corn grits", []string{"shrimp", "corn grits", "butter", "scallion", "paprika"}, "bowl", 500, 30, 50, 20, []string{"gluten_free", "pescatarian"}},
	{"Tempeh lettuce wraps", "Crumbled tempeh with hoisin in lettuce cups", []string{"tempeh", "lettuce", "hoisin sauce", "water chestnut", "scallion"}, "plate", 380, 26, 36, 16, []string{"vegan", "vegetarian", "dairy_free"}},
	{"Mushroom barley risotto", "Slow-cooked barley with mushrooms and parmesan", []string{"pearl barley", "mushrooms", "parmesan", "vegetable stock"}, "bowl", 450, 15, 70, 12, []string{"vegetarian"}},
	{"Lamb kofta with couscous", "Spiced lamb kofta with herbed couscous and tzatziki", []string{"ground lamb", "couscous", "tzatziki", "mint", "cumin"}, "plate", 620, 34, 52, 30, nil},
	{"Banana protein smoothie", "Banana, whey protein, oats and almond milk", []string{"banana", "whey protein", "rolled oats", "almond milk"}, "glass", 350, 30, 46, 6, []string{"vegetarian", "gluten_free"}},
	{"Sardine toast with salad", "Sardines on rye with a lemony side salad", []string{"sardines", "rye bread", "arugula", "lemon", "olive oil"}, "plate", 400, 27, 34, 17, []string{"dairy_free", "pescatarian"}},
}

// SelectFallback filters the library by the user's hard constraints and
// the session's seen set, then rotates the starting point by a stable
// user hash so neighbouring users see different meals.
func SelectFallback(profile *user.Profile, userID uuid.UUID, seen map[string]bool, count int) []suggestion.Suggestion {
	var eligible []fallbackMeal
	for _, m := range fallbackLibrary {
		if !satisfiesConstraints(m, profile) {
			continue
		}
		if seen[fingerprintOf(m)] {
			continue
		}
		eligible = append(eligible, m)
	}
	if len(eligible) == 0 {
		return nil
	}

	start := int(userHash(userID) % uint64(len(eligible)))
	out := make([]suggestion.Suggestion, 0, count)
	for i := 0; i < len(eligible) && len(out) < count; i++ {
		m := eligible[(start+i)%len(eligible)]
		out = append(out, suggestion.Suggestion{
			ID:          uuid.New(),
			Fingerprint: fingerprintOf(m),
			Name:        m.name,
			Description: m.description,
			Ingredients: m.ingredients,
			MacroEstimate: suggestion.MacroEstimate{
				Calories: m.calories,
				Protein:  m.protein,
				Carbs:    m.carbs,
				Fat:      m.fat,
			},
			PortionType: m.portionType,
			Source:      suggestion.SourceFallback,
		})
	}
	return out
}

func fingerprintOf(m fallbackMeal) string {
	return suggestion.Fingerprint(m.name, m.ingredients)
}

func satisfiesConstraints(m fallbackMeal, profile *user.Profile) bool {
	if profile == nil {
		return true
	}
	for _, pref := range profile.DietaryPreferences {
		tag := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(pref)), "-", "_")
		if !m.hasTag(tag) {
			return false
		}
	}
	for _, allergy := range profile.Allergies {
		needle := strings.ToLower(strings.TrimSpace(allergy))
		if needle == "" {
			continue
		}
		for _, ingredient := range m.ingredients {
			if strings.Contains(strings.ToLower(ingredient), needle) {
				return false
			}
		}
	}
	return true
}

func userHash(userID uuid.UUID) uint64 {
	h := fnv.New64a()
	h.Write(userID[:])
	return h.Sum64()
}
