package meal

import (
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/meal"
)

// MealDTO is the serialized read model of a meal, shared by query
// responses and the cache.
type MealDTO struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Status       meal.Status     `json:"status"`
	MealType     meal.MealType   `json:"meal_type"`
	DishName     string          `json:"dish_name,omitempty"`
	ImageRef     string          `json:"image_ref,omitempty"`
	Strategy     string          `json:"strategy,omitempty"`
	Nutrition    *meal.Nutrition `json:"nutrition,omitempty"`
	FoodItems    []meal.FoodItem `json:"food_items,omitempty"`
	ConsumedAt   time.Time       `json:"consumed_at"`
	ReadyAt      *time.Time      `json:"ready_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	EditCount    int             `json:"edit_count"`
	LastEditedAt *time.Time      `json:"last_edited_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ToDTO projects the aggregate into its read model.
func ToDTO(m *meal.Meal) MealDTO {
	return MealDTO{
		ID:           m.ID(),
		UserID:       m.UserID(),
		Status:       m.Status(),
		MealType:     m.Type(),
		DishName:     m.DishName(),
		ImageRef:     m.ImageRef(),
		Strategy:     m.Strategy(),
		Nutrition:    m.Nutrition(),
		FoodItems:    m.FoodItems(),
		ConsumedAt:   m.ConsumedAt(),
		ReadyAt:      m.ReadyAt(),
		ErrorMessage: m.ErrorMessage(),
		EditCount:    m.EditCount(),
		LastEditedAt: m.LastEditedAt(),
		CreatedAt:    m.CreatedAt(),
		UpdatedAt:    m.UpdatedAt(),
	}
}
