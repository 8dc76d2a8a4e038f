package meal

import "github.com/google/uuid"

// Provenance records where a nutrient value originated. Higher-quality
// sources raise the meal's confidence score.
type Provenance string

const (
	ProvenanceUSDA  Provenance = "usda"
	ProvenanceIndex Provenance = "ingredients"
	ProvenanceModel Provenance = "model"
)

// Quality returns the confidence contribution of this provenance.
// USDA > curated vector index > model-only estimate.
func (p Provenance) Quality() float64 {
	switch p {
	case ProvenanceUSDA:
		return 0.95
	case ProvenanceIndex:
		return 0.80
	default:
		return 0.60
	}
}

// Nutrition is the embedded aggregate nutrition value of a meal.
// All values are non-negative; ConfidenceScore is in [0,1] and reflects
// the minimum provenance quality of the contributing food items.
type Nutrition struct {
	Calories        float64 `json:"calories"`
	Protein         float64 `json:"protein"`
	Carbs           float64 `json:"carbs"`
	Fat             float64 `json:"fat"`
	Fiber           float64 `json:"fiber,omitempty"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Validate checks the nutrition invariants
func (n Nutrition) Validate() error {
	if n.Calories < 0 || n.Protein < 0 || n.Carbs < 0 || n.Fat < 0 || n.Fiber < 0 {
		return ErrNegativeNutrition
	}
	if n.ConfidenceScore < 0 || n.ConfidenceScore > 1 {
		return ErrInvalidConfidence
	}
	return nil
}

// Delta returns the per-macro difference other - n
func (n Nutrition) Delta(other Nutrition) Nutrition {
	return Nutrition{
		Calories: other.Calories - n.Calories,
		Protein:  other.Protein - n.Protein,
		Carbs:    other.Carbs - n.Carbs,
		Fat:      other.Fat - n.Fat,
		Fiber:    other.Fiber - n.Fiber,
	}
}

// FoodItem is a value object inside a meal. Per-item macros must sum
// (within 1% rounding tolerance) to the meal's aggregate nutrition
// whenever the meal is ready.
type FoodItem struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Quantity   float64    `json:"quantity"`
	Unit       string     `json:"unit"`
	FdcID      string     `json:"fdc_id,omitempty"`
	IsCustom   bool       `json:"is_custom"`
	Calories   float64    `json:"calories"`
	Protein    float64    `json:"protein"`
	Carbs      float64    `json:"carbs"`
	Fat        float64    `json:"fat"`
	Fiber      float64    `json:"fiber,omitempty"`
	Sugar      float64    `json:"sugar,omitempty"`
	Sodium     float64    `json:"sodium,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// Validate checks the food item invariants
func (f FoodItem) Validate() error {
	if f.Name == "" {
		return ErrItemNameEmpty
	}
	if f.Quantity <= 0 {
		return ErrItemQuantityInvalid
	}
	if f.Calories < 0 || f.Protein < 0 || f.Carbs < 0 || f.Fat < 0 {
		return ErrNegativeNutrition
	}
	return nil
}

// AggregateNutrition sums per-item macros into a meal-level Nutrition.
// The confidence score is the minimum provenance quality across items.
func AggregateNutrition(items []FoodItem) Nutrition {
	var n Nutrition
	if len(items) == 0 {
		return n
	}
	n.ConfidenceScore = 1.0
	for _, item := range items {
		n.Calories += item.Calories
		n.Protein += item.Protein
		n.Carbs += item.Carbs
		n.Fat += item.Fat
		n.Fiber += item.Fiber
		if q := item.Provenance.Quality(); q < n.ConfidenceScore {
			n.ConfidenceScore = q
		}
	}
	return n
}
