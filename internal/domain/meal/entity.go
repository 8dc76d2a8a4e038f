// Package meal contains the core domain logic for meal tracking.
// The Meal aggregate owns its food items, nutrition and image reference,
// and enforces the analysis state machine.
package meal

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/shared"
)

// Status is the analysis state of a meal. Transitions are forward-only:
// PROCESSING -> ANALYZING -> ENRICHING -> READY, with FAILED reachable
// from the in-flight states and INACTIVE reachable via soft delete.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusAnalyzing  Status = "ANALYZING"
	StatusEnriching  Status = "ENRICHING"
	StatusReady      Status = "READY"
	StatusFailed     Status = "FAILED"
	StatusInactive   Status = "INACTIVE"
)

// InFlight reports whether an analysis currently owns the meal.
func (s Status) InFlight() bool {
	return s == StatusProcessing || s == StatusAnalyzing || s == StatusEnriching
}

// MealType categorizes when the meal was eaten
type MealType string

const (
	TypeBreakfast MealType = "breakfast"
	TypeLunch     MealType = "lunch"
	TypeDinner    MealType = "dinner"
	TypeSnack     MealType = "snack"
)

// legacyMealTypes maps retired enum spellings still present in stored
// rows to their canonical values. Accepted on read only; writes always
// use the canonical form.
var legacyMealTypes = map[string]MealType{
	"morning_meal": TypeBreakfast,
	"midday_meal":  TypeLunch,
	"evening_meal": TypeDinner,
	"snacks":       TypeSnack,
}

// ParseMealType resolves a stored meal type string, tolerating legacy
// aliases. Unknown values return ErrUnknownMealType.
func ParseMealType(raw string) (MealType, error) {
	switch t := MealType(strings.ToLower(raw)); t {
	case TypeBreakfast, TypeLunch, TypeDinner, TypeSnack:
		return t, nil
	}
	if t, ok := legacyMealTypes[strings.ToLower(raw)]; ok {
		return t, nil
	}
	return "", ErrUnknownMealType
}

// Meal is the central aggregate of the tracking domain.
type Meal struct {
	shared.AggregateRoot

	id           uuid.UUID
	userID       uuid.UUID
	status       Status
	mealType     MealType
	dishName     string
	imageRef     string
	strategy     string
	nutrition    *Nutrition
	foodItems    []FoodItem
	consumedAt   time.Time
	readyAt      *time.Time
	errorMessage string
	editCount    int
	lastEditedAt *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// NewFromImage creates a meal in PROCESSING for a freshly uploaded image.
// The upload handler returns the id immediately; a background subscriber
// drives the rest of the state machine.
func NewFromImage(id, userID uuid.UUID, imageRef, strategy string, mealType MealType, consumedAt time.Time) *Meal {
	now := time.Now().UTC()
	m := &Meal{
		id:         id,
		userID:     userID,
		status:     StatusProcessing,
		mealType:   mealType,
		imageRef:   imageRef,
		strategy:   strategy,
		consumedAt: consumedAt,
		createdAt:  now,
		updatedAt:  now,
	}
	return m
}

// NewManual creates a meal directly in READY from caller-supplied items.
// Used by manual logging and by suggestion acceptance.
func NewManual(id, userID uuid.UUID, dishName string, items []FoodItem, mealType MealType, consumedAt time.Time) (*Meal, error) {
	if len(items) == 0 {
		return nil, ErrNoFoodItems
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	nutrition := AggregateNutrition(items)
	m := &Meal{
		id:         id,
		userID:     userID,
		status:     StatusReady,
		mealType:   mealType,
		dishName:   dishName,
		nutrition:  &nutrition,
		foodItems:  items,
		consumedAt: consumedAt,
		readyAt:    &now,
		createdAt:  now,
		updatedAt:  now,
	}
	return m, nil
}

// Rehydrate reconstructs a meal from persisted state. It performs no
// validation; the repository is trusted to hand back what it stored.
func Rehydrate(
	id, userID uuid.UUID,
	status Status,
	mealType MealType,
	dishName, imageRef, strategy string,
	nutrition *Nutrition,
	items []FoodItem,
	consumedAt time.Time,
	readyAt *time.Time,
	errorMessage string,
	editCount int,
	lastEditedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Meal {
	return &Meal{
		id:           id,
		userID:       userID,
		status:       status,
		mealType:     mealType,
		dishName:     dishName,
		imageRef:     imageRef,
		strategy:     strategy,
		nutrition:    nutrition,
		foodItems:    items,
		consumedAt:   consumedAt,
		readyAt:      readyAt,
		errorMessage: errorMessage,
		editCount:    editCount,
		lastEditedAt: lastEditedAt,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// Accessors

func (m *Meal) ID() uuid.UUID            { return m.id }
func (m *Meal) UserID() uuid.UUID        { return m.userID }
func (m *Meal) Status() Status           { return m.status }
func (m *Meal) Type() MealType           { return m.mealType }
func (m *Meal) DishName() string         { return m.dishName }
func (m *Meal) ImageRef() string         { return m.imageRef }
func (m *Meal) Strategy() string         { return m.strategy }
func (m *Meal) Nutrition() *Nutrition    { return m.nutrition }
func (m *Meal) FoodItems() []FoodItem    { return m.foodItems }
func (m *Meal) ConsumedAt() time.Time    { return m.consumedAt }
func (m *Meal) ReadyAt() *time.Time      { return m.readyAt }
func (m *Meal) ErrorMessage() string     { return m.errorMessage }
func (m *Meal) EditCount() int           { return m.editCount }
func (m *Meal) LastEditedAt() *time.Time { return m.lastEditedAt }
func (m *Meal) CreatedAt() time.Time     { return m.createdAt }
func (m *Meal) UpdatedAt() time.Time     { return m.updatedAt }

// IsOwnedBy reports whether the given user owns this meal. Every command
// or query carrying a meal id verifies this before acting.
func (m *Meal) IsOwnedBy(userID uuid.UUID) bool {
	return m.userID == userID
}

// BeginAnalysis transitions PROCESSING -> ANALYZING.
func (m *Meal) BeginAnalysis() error {
	if m.status != StatusProcessing {
		return ErrInvalidStatusTransition
	}
	m.status = StatusAnalyzing
	m.touch()
	return nil
}

// BeginEnrichment transitions ANALYZING -> ENRICHING with the items the
// vision model produced. A provisional aggregate nutrition is computed
// from the model estimates; enrichment upgrades it item by item.
func (m *Meal) BeginEnrichment(dishName string, items []FoodItem) error {
	if m.status != StatusAnalyzing {
		return ErrInvalidStatusTransition
	}
	if len(items) == 0 {
		return ErrNoFoodItems
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	m.dishName = dishName
	m.foodItems = items
	provisional := AggregateNutrition(items)
	m.nutrition = &provisional
	m.status = StatusEnriching
	m.touch()
	return nil
}

// Complete transitions ENRICHING -> READY with the enriched items.
func (m *Meal) Complete(items []FoodItem) error {
	if m.status != StatusEnriching {
		return ErrInvalidStatusTransition
	}
	if len(items) == 0 {
		return ErrNoFoodItems
	}

	m.foodItems = items
	final := AggregateNutrition(items)
	m.nutrition = &final
	now := time.Now().UTC()
	m.status = StatusReady
	m.readyAt = &now
	m.touch()

	m.AddEvent(AnalyzedEvent{
		MealID:    m.id,
		UserID:    m.userID,
		Nutrition: final,
		ReadyAt:   now,
	})
	return nil
}

// Fail moves an in-flight meal to FAILED with the given reason. The
// nutrition invariant requires clearing any provisional value.
func (m *Meal) Fail(reason string) error {
	if !m.status.InFlight() {
		return ErrInvalidStatusTransition
	}
	m.status = StatusFailed
	m.errorMessage = reason
	m.nutrition = nil
	m.readyAt = nil
	m.touch()

	m.AddEvent(AnalysisFailedEvent{
		MealID:   m.id,
		UserID:   m.userID,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	})
	return nil
}

// EditKind enumerates the supported meal edits
type EditKind string

const (
	EditAddItem        EditKind = "add_item"
	EditRemoveItem     EditKind = "remove_item"
	EditReplaceItem    EditKind = "replace_item"
	EditAdjustQuantity EditKind = "adjust_quantity"
)

// Edit describes a single mutation of a ready meal's item list
type Edit struct {
	Kind     EditKind
	ItemID   uuid.UUID
	Item     FoodItem
	Quantity float64
}

// ApplyEdit mutates the item list of a READY meal, recomputes the
// aggregate nutrition, bumps the edit counter and raises EditedEvent
// with the nutrition delta.
func (m *Meal) ApplyEdit(edit Edit) error {
	if m.status != StatusReady {
		return ErrNotReady
	}

	before := *m.nutrition

	switch edit.Kind {
	case EditAddItem:
		if err := edit.Item.Validate(); err != nil {
			return err
		}
		m.foodItems = append(m.foodItems, edit.Item)

	case EditRemoveItem:
		idx := m.itemIndex(edit.ItemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		if len(m.foodItems) == 1 {
			return ErrNoFoodItems
		}
		m.foodItems = append(m.foodItems[:idx], m.foodItems[idx+1:]...)

	case EditReplaceItem:
		idx := m.itemIndex(edit.ItemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		if err := edit.Item.Validate(); err != nil {
			return err
		}
		m.foodItems[idx] = edit.Item

	case EditAdjustQuantity:
		idx := m.itemIndex(edit.ItemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		if edit.Quantity <= 0 {
			return ErrItemQuantityInvalid
		}
		item := m.foodItems[idx]
		ratio := edit.Quantity / item.Quantity
		item.Quantity = edit.Quantity
		item.Calories *= ratio
		item.Protein *= ratio
		item.Carbs *= ratio
		item.Fat *= ratio
		item.Fiber *= ratio
		m.foodItems[idx] = item

	default:
		return ErrInvalidStatusTransition
	}

	after := AggregateNutrition(m.foodItems)
	m.nutrition = &after
	m.editCount++
	now := time.Now().UTC()
	m.lastEditedAt = &now
	m.touch()

	m.AddEvent(EditedEvent{
		MealID:         m.id,
		UserID:         m.userID,
		NutritionDelta: before.Delta(after),
		EditedAt:       now,
	})
	return nil
}

// SoftDelete flips the meal to INACTIVE. Idempotent.
func (m *Meal) SoftDelete() {
	if m.status == StatusInactive {
		return
	}
	m.status = StatusInactive
	m.touch()

	m.AddEvent(DeletedEvent{
		MealID:    m.id,
		UserID:    m.userID,
		DeletedAt: time.Now().UTC(),
	})
}

// CheckInvariants verifies the aggregate-level invariants. Used by tests
// and by the pipeline before persisting a READY meal.
func (m *Meal) CheckInvariants() error {
	hasNutrition := m.nutrition != nil
	wantNutrition := m.status == StatusEnriching || m.status == StatusReady
	if hasNutrition != wantNutrition {
		return ErrInvalidStatusTransition
	}
	if (m.readyAt != nil) != (m.status == StatusReady) {
		return ErrInvalidStatusTransition
	}
	if (m.errorMessage != "") != (m.status == StatusFailed) {
		return ErrInvalidStatusTransition
	}
	if m.status == StatusReady {
		sum := AggregateNutrition(m.foodItems)
		if !withinTolerance(sum.Calories, m.nutrition.Calories) ||
			!withinTolerance(sum.Protein, m.nutrition.Protein) ||
			!withinTolerance(sum.Carbs, m.nutrition.Carbs) ||
			!withinTolerance(sum.Fat, m.nutrition.Fat) {
			return ErrNegativeNutrition
		}
	}
	return nil
}

// withinTolerance allows 1% rounding slack between the item sum and the
// stored aggregate.
func withinTolerance(sum, stored float64) bool {
	diff := sum - stored
	if diff < 0 {
		diff = -diff
	}
	limit := stored * 0.01
	if limit < 1e-9 {
		limit = 1e-9
	}
	return diff <= limit
}

func (m *Meal) itemIndex(id uuid.UUID) int {
	for i, item := range m.foodItems {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (m *Meal) touch() {
	m.updatedAt = time.Now().UTC()
}
