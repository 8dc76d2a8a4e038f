package meal

import (
	"time"

	"github.com/google/uuid"
)

// Domain events raised by the meal aggregate and the analysis pipeline

// ImageUploadedEvent is raised when a meal image has been stored and the
// meal persisted in PROCESSING. The background analyzer subscribes to it.
type ImageUploadedEvent struct {
	MealID     uuid.UUID
	UserID     uuid.UUID
	ImageRef   string
	Strategy   string
	Hints      AnalysisHints
	UploadedAt time.Time
}

func (e ImageUploadedEvent) EventName() string {
	return "meal.image.uploaded"
}

func (e ImageUploadedEvent) OccurredAt() time.Time {
	return e.UploadedAt
}

// AnalysisHints carries optional caller-supplied context that selects
// the analysis strategy.
type AnalysisHints struct {
	PortionHint  string   `json:"portion_hint,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
	TotalWeightG float64  `json:"total_weight_g,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// AnalyzedEvent is raised when a meal reaches READY
type AnalyzedEvent struct {
	MealID    uuid.UUID
	UserID    uuid.UUID
	Nutrition Nutrition
	ReadyAt   time.Time
}

func (e AnalyzedEvent) EventName() string {
	return "meal.analyzed"
}

func (e AnalyzedEvent) OccurredAt() time.Time {
	return e.ReadyAt
}

// AnalysisFailedEvent is raised when any analysis step fails
type AnalysisFailedEvent struct {
	MealID   uuid.UUID
	UserID   uuid.UUID
	Reason   string
	FailedAt time.Time
}

func (e AnalysisFailedEvent) EventName() string {
	return "meal.analysis.failed"
}

func (e AnalysisFailedEvent) OccurredAt() time.Time {
	return e.FailedAt
}

// EditedEvent is raised when a ready meal is edited
type EditedEvent struct {
	MealID         uuid.UUID
	UserID         uuid.UUID
	NutritionDelta Nutrition
	EditedAt       time.Time
}

func (e EditedEvent) EventName() string {
	return "meal.edited"
}

func (e EditedEvent) OccurredAt() time.Time {
	return e.EditedAt
}

// DeletedEvent is raised on soft delete
type DeletedEvent struct {
	MealID    uuid.UUID
	UserID    uuid.UUID
	DeletedAt time.Time
}

func (e DeletedEvent) EventName() string {
	return "meal.deleted"
}

func (e DeletedEvent) OccurredAt() time.Time {
	return e.DeletedAt
}

// CreatedFromSuggestionEvent is raised when a suggestion is accepted and
// materialized into a meal
type CreatedFromSuggestionEvent struct {
	MealID                uuid.UUID
	UserID                uuid.UUID
	SuggestionFingerprint string
	Multiplier            int
	CreatedAt             time.Time
}

func (e CreatedFromSuggestionEvent) EventName() string {
	return "meal.created.from_suggestion"
}

func (e CreatedFromSuggestionEvent) OccurredAt() time.Time {
	return e.CreatedAt
}
