package meal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/application/nutrition"
	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/ports/outbound"
	apperrors "github.com/nutrisnap/v2/pkg/errors"
)

// Upload limits
const (
	maxImageBytes = 10 << 20 // 10 MiB

	mealCacheTTL    = 2 * time.Hour
	summaryCacheTTL = time.Hour
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Service implements the meal use cases. Command handlers receive their
// repositories from the unit of work; queries and the background
// pipeline use the injected singletons.
type Service struct {
	meals    outbound.MealRepository
	users    outbound.UserRepository
	images   outbound.ImageStore
	vision   outbound.VisionModel
	lookup   *nutrition.Service
	cache    outbound.CacheStore
	events   *bus.Publisher
	metrics  outbound.Metrics
	ids      outbound.IDGenerator
	clock    outbound.Clock
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates the meal application service.
func NewService(
	meals outbound.MealRepository,
	users outbound.UserRepository,
	images outbound.ImageStore,
	vision outbound.VisionModel,
	lookup *nutrition.Service,
	cache outbound.CacheStore,
	events *bus.Publisher,
	metrics outbound.Metrics,
	ids outbound.IDGenerator,
	clock outbound.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		meals:    meals,
		users:    users,
		images:   images,
		vision:   vision,
		lookup:   lookup,
		cache:    cache,
		events:   events,
		metrics:  metrics,
		ids:      ids,
		clock:    clock,
		validate: validator.New(),
		logger:   logger.Named("meal"),
	}
}

// Register wires the service's handlers and subscribers into the bus.
func (s *Service) Register(b *bus.Bus) {
	bus.RegisterCommand(b, s.handleUploadImage)
	bus.RegisterCommand(b, s.CreateManual)
	bus.RegisterCommand(b, s.handleEdit)
	bus.RegisterCommand(b, s.handleDelete)
	bus.RegisterQuery(b, s.handleGetMeal)
	bus.RegisterQuery(b, s.handleListByDate)
	bus.RegisterQuery(b, s.handleDailySummary)

	b.Subscribe(meal.ImageUploadedEvent{}.EventName(), s.OnImageUploaded)
	b.Subscribe(meal.AnalyzedEvent{}.EventName(), s.OnMealChanged)
	b.Subscribe(meal.EditedEvent{}.EventName(), s.OnMealChanged)
	b.Subscribe(meal.DeletedEvent{}.EventName(), s.OnMealChanged)
}

func (s *Service) handleUploadImage(ctx context.Context, uow bus.UnitOfWork, cmd UploadMealImageCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	if !allowedImageTypes[cmd.ContentType] {
		return nil, apperrors.NewInvalidInput("content type must be image/jpeg or image/png")
	}
	if len(cmd.Image) > maxImageBytes {
		return nil, apperrors.NewInvalidInput("image exceeds 10 MiB")
	}
	mealType, err := meal.ParseMealType(cmd.MealType)
	if err != nil {
		return nil, apperrors.NewInvalidInput("unknown meal type " + cmd.MealType)
	}

	consumedAt := cmd.ConsumedAt
	if consumedAt.IsZero() {
		consumedAt = s.clock.Now()
	}

	id := s.ids.New()
	key := fmt.Sprintf("meals/%s/%s", cmd.UserID, id)
	imageRef, err := s.images.Put(ctx, key, cmd.Image, cmd.ContentType)
	if err != nil {
		return nil, apperrors.NewUpstream("image store", err)
	}

	strategy := SelectStrategy(cmd.Hints)
	m := meal.NewFromImage(id, cmd.UserID, imageRef, strategy, mealType, consumedAt)
	if err := uow.Meals().Create(ctx, m); err != nil {
		return nil, err
	}

	uow.Collect(meal.ImageUploadedEvent{
		MealID:     m.ID(),
		UserID:     m.UserID(),
		ImageRef:   imageRef,
		Strategy:   strategy,
		Hints:      cmd.Hints,
		UploadedAt: s.clock.Now(),
	})
	return ToDTO(m), nil
}

// CreateManual logs a READY meal from caller-supplied items. Exported so
// suggestion acceptance can materialize a meal inside its own unit of
// work.
func (s *Service) CreateManual(ctx context.Context, uow bus.UnitOfWork, cmd CreateManualMealCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	mealType, err := meal.ParseMealType(cmd.MealType)
	if err != nil {
		return nil, apperrors.NewInvalidInput("unknown meal type " + cmd.MealType)
	}

	provenance := cmd.Provenance
	if provenance == "" {
		provenance = meal.ProvenanceModel
	}
	items := make([]meal.FoodItem, 0, len(cmd.Items))
	for _, in := range cmd.Items {
		items = append(items, meal.FoodItem{
			ID:         s.ids.New(),
			Name:       in.Name,
			Quantity:   in.Quantity,
			Unit:       in.Unit,
			IsCustom:   true,
			Calories:   in.Calories,
			Protein:    in.Protein,
			Carbs:      in.Carbs,
			Fat:        in.Fat,
			Fiber:      in.Fiber,
			Provenance: provenance,
		})
	}

	consumedAt := cmd.ConsumedAt
	if consumedAt.IsZero() {
		consumedAt = s.clock.Now()
	}

	m, err := meal.NewManual(s.ids.New(), cmd.UserID, cmd.DishName, items, mealType, consumedAt)
	if err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	if err := uow.Meals().Create(ctx, m); err != nil {
		return nil, err
	}

	if cmd.Fingerprint != "" {
		uow.Collect(meal.CreatedFromSuggestionEvent{
			MealID:                m.ID(),
			UserID:                m.UserID(),
			SuggestionFingerprint: cmd.Fingerprint,
			Multiplier:            cmd.Multiplier,
			CreatedAt:             s.clock.Now(),
		})
	}
	uow.Collect(m.Events()...)
	m.ClearEvents()
	return ToDTO(m), nil
}

func (s *Service) handleEdit(ctx context.Context, uow bus.UnitOfWork, cmd EditMealCommand) (any, error) {
	m, err := s.loadOwned(ctx, uow.Meals(), cmd.MealID, cmd.UserID, true)
	if err != nil {
		return nil, err
	}

	if err := m.ApplyEdit(cmd.Edit); err != nil {
		return nil, mapEditErr(err)
	}
	if err := uow.Meals().Update(ctx, m); err != nil {
		return nil, err
	}

	uow.Collect(m.Events()...)
	m.ClearEvents()
	return ToDTO(m), nil
}

func (s *Service) handleDelete(ctx context.Context, uow bus.UnitOfWork, cmd DeleteMealCommand) (any, error) {
	m, err := uow.Meals().FindByID(ctx, cmd.MealID)
	if errors.Is(err, outbound.ErrNotFound) {
		return nil, apperrors.NewNotFound("meal", cmd.MealID.String())
	}
	if err != nil {
		return nil, err
	}
	if !m.IsOwnedBy(cmd.UserID) {
		return nil, apperrors.NewForbidden("delete meal")
	}
	if m.Status() == meal.StatusInactive {
		return ToDTO(m), nil
	}

	m.SoftDelete()
	if err := uow.Meals().Update(ctx, m); err != nil {
		return nil, err
	}

	uow.Collect(m.Events()...)
	m.ClearEvents()
	return ToDTO(m), nil
}

func (s *Service) handleGetMeal(ctx context.Context, q GetMealQuery) (any, error) {
	cacheKey := "meal:" + q.MealID.String()
	if data, err := s.cache.Get(ctx, cacheKey); err == nil {
		var dto MealDTO
		if json.Unmarshal(data, &dto) == nil && dto.UserID == q.UserID && dto.Status != meal.StatusInactive {
			return dto, nil
		}
	}

	m, err := s.loadOwned(ctx, s.meals, q.MealID, q.UserID, false)
	if err != nil {
		return nil, err
	}

	dto := ToDTO(m)
	if data, err := json.Marshal(dto); err == nil {
		_ = s.cache.Set(ctx, cacheKey, data, mealCacheTTL)
	}
	return dto, nil
}

func (s *Service) handleListByDate(ctx context.Context, q ListMealsByDateQuery) (any, error) {
	from, to, err := s.localDayRange(ctx, q.UserID, q.Date)
	if err != nil {
		return nil, err
	}

	meals, err := s.meals.FindByUserAndRange(ctx, q.UserID, from, to)
	if err != nil {
		return nil, err
	}

	dtos := make([]MealDTO, 0, len(meals))
	for _, m := range meals {
		dtos = append(dtos, ToDTO(m))
	}
	return dtos, nil
}

func (s *Service) handleDailySummary(ctx context.Context, q GetDailySummaryQuery) (any, error) {
	cacheKey := fmt.Sprintf("meal:%s:daily_summary:%s", q.UserID, q.Date)
	if data, err := s.cache.Get(ctx, cacheKey); err == nil {
		var summary DailySummary
		if json.Unmarshal(data, &summary) == nil {
			return summary, nil
		}
	}

	from, to, err := s.localDayRange(ctx, q.UserID, q.Date)
	if err != nil {
		return nil, err
	}
	meals, err := s.meals.FindByUserAndRange(ctx, q.UserID, from, to)
	if err != nil {
		return nil, err
	}

	summary := DailySummary{Date: q.Date}
	for _, m := range meals {
		if m.Status() != meal.StatusReady {
			continue
		}
		summary.MealCount++
		n := m.Nutrition()
		summary.Totals.Calories += n.Calories
		summary.Totals.Protein += n.Protein
		summary.Totals.Carbs += n.Carbs
		summary.Totals.Fat += n.Fat
		summary.Totals.Fiber += n.Fiber
	}

	if data, err := json.Marshal(summary); err == nil {
		_ = s.cache.Set(ctx, cacheKey, data, summaryCacheTTL)
	}
	return summary, nil
}

// loadOwned fetches a non-deleted meal and enforces ownership. Reads
// hide other users' meals as NOT_FOUND; mutations surface FORBIDDEN.
func (s *Service) loadOwned(ctx context.Context, repo outbound.MealRepository, mealID, userID uuid.UUID, forWrite bool) (*meal.Meal, error) {
	m, err := repo.FindByID(ctx, mealID)
	if errors.Is(err, outbound.ErrNotFound) {
		return nil, apperrors.NewNotFound("meal", mealID.String())
	}
	if err != nil {
		return nil, err
	}
	if !m.IsOwnedBy(userID) {
		if forWrite {
			return nil, apperrors.NewForbidden("modify meal")
		}
		return nil, apperrors.NewNotFound("meal", mealID.String())
	}
	if m.Status() == meal.StatusInactive {
		return nil, apperrors.NewNotFound("meal", mealID.String())
	}
	return m, nil
}

func mapEditErr(err error) error {
	switch {
	case errors.Is(err, meal.ErrNotReady):
		return apperrors.NewPreconditionFailed("meal is not READY")
	case errors.Is(err, meal.ErrItemNotFound):
		return apperrors.NewNotFound("food item", "")
	default:
		return apperrors.NewInvalidInput(err.Error())
	}
}

// localDayRange resolves a yyyy-mm-dd date to its UTC bounds in the
// user's timezone.
func (s *Service) localDayRange(ctx context.Context, userID uuid.UUID, date string) (time.Time, time.Time, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, outbound.ErrNotFound) {
		return time.Time{}, time.Time{}, apperrors.NewNotFound("user", userID.String())
	}
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	loc, err := time.LoadLocation(u.Timezone())
	if err != nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewInvalidInput("date must be yyyy-mm-dd")
	}
	return day.UTC(), day.AddDate(0, 0, 1).UTC(), nil
}
