package meal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/shared"
)

const (
	visionTimeout = 60 * time.Second
	signedURLTTL  = 15 * time.Minute
)

// OnImageUploaded drives a meal from PROCESSING to READY or FAILED.
// Every transition uses a conditional status update; when the
// precondition fails another invocation already owns the meal and this
// one exits silently.
func (s *Service) OnImageUploaded(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(meal.ImageUploadedEvent)
	if !ok {
		return nil
	}

	m, err := s.meals.FindByID(ctx, e.MealID)
	if err != nil {
		return err
	}
	if m.Status() != meal.StatusProcessing {
		return nil
	}
	if err := m.BeginAnalysis(); err != nil {
		return nil
	}
	if won, err := s.meals.UpdateIfStatus(ctx, m, meal.StatusProcessing); err != nil || !won {
		return err
	}

	start := s.clock.Now()

	result, reason := s.runVision(ctx, m, e.Hints)
	if reason != "" {
		return s.failAnalysis(ctx, m, reason, start)
	}
	if len(result.Items) == 0 {
		return s.failAnalysis(ctx, m, ReasonNoFoodDetected, start)
	}

	items := s.toFoodItems(result.Items)
	if err := m.BeginEnrichment(result.DishName, items); err != nil {
		return s.failAnalysis(ctx, m, ReasonUnparseable, start)
	}
	if won, err := s.meals.UpdateIfStatus(ctx, m, meal.StatusAnalyzing); err != nil || !won {
		return err
	}

	enriched := s.enrich(ctx, m.FoodItems())
	if err := m.Complete(enriched); err != nil {
		return s.failAnalysis(ctx, m, ReasonUnparseable, start)
	}
	if err := m.CheckInvariants(); err != nil {
		return s.failAnalysis(ctx, m, ReasonUnparseable, start)
	}
	if won, err := s.meals.UpdateIfStatus(ctx, m, meal.StatusEnriching); err != nil || !won {
		return err
	}

	s.events.Publish(m.Events()...)
	m.ClearEvents()
	s.metrics.AnalysisFinished(m.Strategy(), "ready", time.Since(start))
	s.logger.Info("meal analysis complete",
		zap.String("meal_id", m.ID().String()),
		zap.String("strategy", m.Strategy()),
		zap.Int("items", len(enriched)))
	return nil
}

// runVision calls the vision model under its hard timeout and parses
// the response. A non-empty reason means the meal must fail.
func (s *Service) runVision(ctx context.Context, m *meal.Meal, hints meal.AnalysisHints) (*AnalysisResult, string) {
	vctx, cancel := context.WithTimeout(ctx, visionTimeout)
	defer cancel()

	imageURL, err := s.images.SignedURL(vctx, m.ImageRef(), signedURLTTL)
	if err != nil {
		return nil, ReasonVisionError
	}

	system, user := BuildVisionPrompt(hints)
	raw, err := s.vision.AnalyzeImage(vctx, imageURL, system, user)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(vctx.Err(), context.DeadlineExceeded) {
			return nil, ReasonVisionTimeout
		}
		return nil, ReasonVisionError
	}

	result, err := ParseAnalysisResponse(raw)
	switch {
	case errors.Is(err, ErrContentBlocked):
		return nil, ReasonContentBlocked
	case err != nil:
		return nil, ReasonUnparseable
	}
	return result, ""
}

func (s *Service) toFoodItems(analyzed []AnalyzedItem) []meal.FoodItem {
	items := make([]meal.FoodItem, 0, len(analyzed))
	for _, a := range analyzed {
		quantity := a.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		items = append(items, meal.FoodItem{
			ID:         s.ids.New(),
			Name:       a.Name,
			Quantity:   quantity,
			Unit:       a.Unit,
			Calories:   a.Calories,
			Protein:    a.Protein,
			Carbs:      a.Carbs,
			Fat:        a.Fat,
			Fiber:      a.Fiber,
			Provenance: meal.ProvenanceModel,
		})
	}
	return items
}

// enrich upgrades each item's macros from the nutrition indices. Items
// with no qualifying hit keep their model estimates.
func (s *Service) enrich(ctx context.Context, items []meal.FoodItem) []meal.FoodItem {
	enriched := make([]meal.FoodItem, 0, len(items))
	for _, item := range items {
		if hit := s.lookup.Lookup(ctx, item.Name, item.Quantity, item.Unit); hit != nil {
			item.Calories = hit.Calories
			item.Protein = hit.Protein
			item.Carbs = hit.Carbs
			item.Fat = hit.Fat
			item.Fiber = hit.Fiber
			item.FdcID = hit.FdcID
			item.Provenance = hit.Provenance
		}
		enriched = append(enriched, item)
	}
	return enriched
}

// failAnalysis moves an in-flight meal to FAILED under the same
// conditional-update discipline as the forward transitions.
func (s *Service) failAnalysis(ctx context.Context, m *meal.Meal, reason string, start time.Time) error {
	expected := m.Status()
	if err := m.Fail(reason); err != nil {
		return nil
	}
	won, err := s.meals.UpdateIfStatus(ctx, m, expected)
	if err != nil || !won {
		return err
	}

	s.events.Publish(m.Events()...)
	m.ClearEvents()
	s.metrics.AnalysisFinished(m.Strategy(), "failed", time.Since(start))
	s.logger.Warn("meal analysis failed",
		zap.String("meal_id", m.ID().String()),
		zap.String("reason", reason))
	return nil
}
