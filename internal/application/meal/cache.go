package meal

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/shared"
)

// OnMealChanged evicts the read-side cache entries a meal mutation
// invalidates. Eviction is idempotent, so concurrent delivery is safe.
func (s *Service) OnMealChanged(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case meal.AnalyzedEvent:
		return s.invalidate(ctx, e.MealID, e.UserID)
	case meal.EditedEvent:
		return s.invalidate(ctx, e.MealID, e.UserID)
	case meal.DeletedEvent:
		return s.invalidate(ctx, e.MealID, e.UserID)
	default:
		return nil
	}
}

func (s *Service) invalidate(ctx context.Context, mealID, userID uuid.UUID) error {
	if err := s.cache.Delete(ctx,
		"meal:"+mealID.String(),
		fmt.Sprintf("meal:%s:history", userID),
	); err != nil {
		return err
	}
	return s.cache.DeletePattern(ctx, fmt.Sprintf("meal:%s:daily_summary:*", userID))
}
