package outbound

import "context"

// Nutrition index namespaces. The ingredients namespace holds curated
// per-ingredient entries; usda holds the bulk FoodData Central corpus.
const (
	NamespaceIngredients = "ingredients"
	NamespaceUSDA        = "usda"
)

// Per100g is the macro payload stored alongside each index entry,
// normalized to a 100 gram serving.
type Per100g struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	Fiber    float64
}

// VectorMatch is one similarity hit from the nutrition index.
type VectorMatch struct {
	ID      string
	Name    string
	FdcID   string
	Score   float64
	Per100g Per100g
}

// NutritionIndex answers nearest-neighbour queries over embedded food
// names.
type NutritionIndex interface {
	Search(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorMatch, error)
}
