// Package meal provides the application layer for meal tracking: image
// upload, manual logging, editing, deletion, queries, and the background
// analysis pipeline.
package meal

import (
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/meal"
)

// UploadMealImageCommand starts the photo analysis pipeline. The
// response carries the meal id while analysis continues in the
// background.
type UploadMealImageCommand struct {
	UserID      uuid.UUID `validate:"required"`
	Image       []byte    `validate:"required"`
	ContentType string    `validate:"required"`
	MealType    string    `validate:"required"`
	ConsumedAt  time.Time
	Hints       meal.AnalysisHints
}

func (UploadMealImageCommand) CommandName() string { return "meal.upload_image" }
func (c UploadMealImageCommand) ActorID() uuid.UUID { return c.UserID }

// ManualItemInput is one caller-supplied food item.
type ManualItemInput struct {
	Name     string  `validate:"required"`
	Quantity float64 `validate:"gt=0"`
	Unit     string
	Calories float64 `validate:"gte=0"`
	Protein  float64 `validate:"gte=0"`
	Carbs    float64 `validate:"gte=0"`
	Fat      float64 `validate:"gte=0"`
	Fiber    float64 `validate:"gte=0"`
}

// CreateManualMealCommand logs a meal directly in READY. Also the
// materialization path for accepted suggestions.
type CreateManualMealCommand struct {
	UserID      uuid.UUID         `validate:"required"`
	DishName    string            `validate:"required"`
	Items       []ManualItemInput `validate:"required,min=1,dive"`
	MealType    string            `validate:"required"`
	ConsumedAt  time.Time
	Provenance  meal.Provenance
	Fingerprint string
	Multiplier  int
}

func (CreateManualMealCommand) CommandName() string { return "meal.create_manual" }
func (c CreateManualMealCommand) ActorID() uuid.UUID { return c.UserID }

// EditMealCommand applies a single edit to a READY meal.
type EditMealCommand struct {
	UserID uuid.UUID `validate:"required"`
	MealID uuid.UUID `validate:"required"`
	Edit   meal.Edit
}

func (EditMealCommand) CommandName() string { return "meal.edit" }
func (c EditMealCommand) ActorID() uuid.UUID { return c.UserID }

// DeleteMealCommand soft-deletes a meal. Idempotent.
type DeleteMealCommand struct {
	UserID uuid.UUID `validate:"required"`
	MealID uuid.UUID `validate:"required"`
}

func (DeleteMealCommand) CommandName() string { return "meal.delete" }
func (c DeleteMealCommand) ActorID() uuid.UUID { return c.UserID }

// GetMealQuery fetches one meal by id.
type GetMealQuery struct {
	UserID uuid.UUID
	MealID uuid.UUID
}

func (GetMealQuery) QueryName() string { return "meal.get" }
func (q GetMealQuery) ActorID() uuid.UUID { return q.UserID }

// ListMealsByDateQuery lists a user's meals for one local calendar day.
type ListMealsByDateQuery struct {
	UserID uuid.UUID
	Date   string // yyyy-mm-dd in the user's timezone
}

func (ListMealsByDateQuery) QueryName() string { return "meal.list_by_date" }
func (q ListMealsByDateQuery) ActorID() uuid.UUID { return q.UserID }

// GetDailySummaryQuery sums READY meals for one local calendar day.
type GetDailySummaryQuery struct {
	UserID uuid.UUID
	Date   string
}

func (GetDailySummaryQuery) QueryName() string { return "meal.daily_summary" }
func (q GetDailySummaryQuery) ActorID() uuid.UUID { return q.UserID }

// DailySummary is the aggregate view of one local day.
type DailySummary struct {
	Date      string         `json:"date"`
	MealCount int            `json:"meal_count"`
	Totals    meal.Nutrition `json:"totals"`
}
