package meal

import "errors"

// Domain errors for the meal aggregate
var (
	ErrInvalidStatusTransition = errors.New("invalid meal status transition")
	ErrNotReady                = errors.New("meal is not ready")
	ErrNegativeNutrition       = errors.New("nutrition values must be non-negative")
	ErrInvalidConfidence       = errors.New("confidence score must be in [0,1]")
	ErrItemNameEmpty           = errors.New("food item name cannot be empty")
	ErrItemQuantityInvalid     = errors.New("food item quantity must be positive")
	ErrItemNotFound            = errors.New("food item not found")
	ErrNoFoodItems             = errors.New("meal must contain at least one food item")
	ErrUnknownMealType         = errors.New("unknown meal type")
)
