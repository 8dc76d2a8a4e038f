package gorm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormdb "gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/domain/chat"
	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/user"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

func newTestDB(t *testing.T) *gormdb.DB {
	t.Helper()
	db, err := gormdb.Open(sqlite.Open(":memory:"), &gormdb.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// In-memory sqlite is per-connection; keep the pool at one.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))
	return db
}

func readyMeal(t *testing.T, userID uuid.UUID, consumedAt time.Time) *meal.Meal {
	t.Helper()
	items := []meal.FoodItem{
		{
			ID: uuid.New(), Name: "grilled salmon", Quantity: 150, Unit: "g",
			Calories: 280, Protein: 34, Fat: 16,
			Provenance: meal.ProvenanceUSDA,
		},
		{
			ID: uuid.New(), Name: "rice", Quantity: 180, Unit: "g",
			Calories: 230, Protein: 4.5, Carbs: 50, Fat: 0.5,
			Provenance: meal.ProvenanceModel,
		},
	}
	m, err := meal.NewManual(uuid.New(), userID, "Salmon with rice", items, meal.TypeDinner, consumedAt)
	require.NoError(t, err)
	return m
}

func TestMealRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewMealRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	m := readyMeal(t, userID, time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, m))

	got, err := repo.FindByID(ctx, m.ID())
	require.NoError(t, err)
	assert.Equal(t, m.ID(), got.ID())
	assert.Equal(t, userID, got.UserID())
	assert.Equal(t, meal.StatusReady, got.Status())
	assert.Equal(t, meal.TypeDinner, got.Type())
	assert.Equal(t, "Salmon with rice", got.DishName())
	require.NotNil(t, got.Nutrition())
	assert.InDelta(t, 510, got.Nutrition().Calories, 0.01)
	require.Len(t, got.FoodItems(), 2)
	assert.Equal(t, "grilled salmon", got.FoodItems()[0].Name)
	assert.Equal(t, meal.ProvenanceUSDA, got.FoodItems()[0].Provenance)
	require.NotNil(t, got.ReadyAt())
}

func TestMealInFlightKeepsNullNutrition(t *testing.T) {
	db := newTestDB(t)
	repo := NewMealRepository(db)
	ctx := context.Background()

	m := meal.NewFromImage(uuid.New(), uuid.New(), "images/raw.jpg", "photo", meal.TypeLunch, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, m))

	got, err := repo.FindByID(ctx, m.ID())
	require.NoError(t, err)
	assert.Equal(t, meal.StatusProcessing, got.Status())
	assert.Nil(t, got.Nutrition())
	assert.Empty(t, got.FoodItems())
	assert.Nil(t, got.ReadyAt())
}

func TestFindMissingMeal(t *testing.T) {
	db := newTestDB(t)
	repo := NewMealRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, outbound.ErrNotFound)
}

func TestUpdateIfStatusGuardsStaleWriters(t *testing.T) {
	db := newTestDB(t)
	repo := NewMealRepository(db)
	ctx := context.Background()

	m := meal.NewFromImage(uuid.New(), uuid.New(), "images/raw.jpg", "photo", meal.TypeLunch, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, m))

	require.NoError(t, m.BeginAnalysis())
	ok, err := repo.UpdateIfStatus(ctx, m, meal.StatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second worker still holding the PROCESSING snapshot loses.
	ok, err = repo.UpdateIfStatus(ctx, m, meal.StatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, m.ID())
	require.NoError(t, err)
	assert.Equal(t, meal.StatusAnalyzing, got.Status())
}

func TestFindByUserAndRange(t *testing.T) {
	db := newTestDB(t)
	repo := NewMealRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	early := readyMeal(t, userID, day.Add(8*time.Hour))
	late := readyMeal(t, userID, day.Add(19*time.Hour))
	deleted := readyMeal(t, userID, day.Add(12*time.Hour))
	deleted.SoftDelete()
	nextDay := readyMeal(t, userID, day.Add(25*time.Hour))
	foreign := readyMeal(t, uuid.New(), day.Add(9*time.Hour))

	for _, m := range []*meal.Meal{late, early, deleted, nextDay, foreign} {
		require.NoError(t, repo.Create(ctx, m))
	}

	got, err := repo.FindByUserAndRange(ctx, userID, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID(), got[0].ID())
	assert.Equal(t, late.ID(), got[1].ID())
}

func TestUserRoundTripThroughOnboarding(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := user.New(uuid.New(), "dana@example.com", "Europe/Berlin", "de")
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.FindByID(ctx, u.ID())
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", got.Email())
	assert.Nil(t, got.Profile())

	got.CompleteOnboarding(user.Profile{
		Age: 31, Sex: user.SexFemale, HeightCm: 168, WeightKg: 62,
		ActivityLevel: user.ActivityModerate, Goal: user.GoalCut,
		Allergies: []string{"peanuts"},
	})
	got.ClearEvents()
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.FindByID(ctx, u.ID())
	require.NoError(t, err)
	require.NotNil(t, again.Profile())
	assert.Equal(t, user.GoalCut, again.Profile().Goal)
	assert.Equal(t, []string{"peanuts"}, again.Profile().Allergies)
}

func TestRegisterTokenUpsertReactivates(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	token := user.FcmToken{
		Token: "fcm-abc", UserID: userID, Platform: user.PlatformIOS,
		IsActive: true, LastUsedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.RegisterToken(ctx, token))
	require.NoError(t, repo.DeactivateToken(ctx, "fcm-abc"))

	active, err := repo.ActiveTokens(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Re-registering after a reinstall brings the token back.
	require.NoError(t, repo.RegisterToken(ctx, token))
	active, err = repo.ActiveTokens(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "fcm-abc", active[0].Token)
	assert.Equal(t, user.PlatformIOS, active[0].Platform)
}

func TestPrefsSaveIsUpsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	prefs := user.NotificationPrefs{
		UserID: userID, Enabled: true, MealsEnabled: true,
		BreakfastMinute: 480, LunchMinute: 720, DinnerMinute: 1140,
		SleepMinute: 1320, WaterIntervalHours: 2, Timezone: "America/New_York",
	}
	require.NoError(t, repo.SavePrefs(ctx, prefs))

	prefs.LunchMinute = 750
	require.NoError(t, repo.SavePrefs(ctx, prefs))

	got, err := repo.FindPrefs(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 750, got.LunchMinute)

	_, err = repo.FindPrefs(ctx, uuid.New())
	assert.ErrorIs(t, err, outbound.ErrNotFound)
}

func TestListEnabledPrefsFiltersMasterToggle(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	on := user.NotificationPrefs{UserID: uuid.New(), Enabled: true, Timezone: "UTC"}
	off := user.NotificationPrefs{UserID: uuid.New(), Enabled: false, Timezone: "UTC"}
	require.NoError(t, repo.SavePrefs(ctx, on))
	require.NoError(t, repo.SavePrefs(ctx, off))

	got, err := repo.ListEnabledPrefs(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, on.UserID, got[0].UserID)
}

func TestThreadRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatThreadRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	thread := chat.NewThread(uuid.New(), userID)
	require.NoError(t, thread.AppendExchange("how much protein today?", "You logged 84g so far."))
	thread.ClearEvents()
	require.NoError(t, repo.Create(ctx, thread))

	got, err := repo.FindByID(ctx, thread.ID())
	require.NoError(t, err)
	assert.Equal(t, chat.ThreadOpen, got.Status())
	require.Len(t, got.Messages(), 2)
	assert.Equal(t, chat.RoleUser, got.Messages()[0].Role)
	assert.Equal(t, "You logged 84g so far.", got.Messages()[1].Content)
}

func TestListThreadsMostRecentFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatThreadRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	var last uuid.UUID
	for i := 0; i < 3; i++ {
		thread := chat.NewThread(uuid.New(), userID)
		require.NoError(t, repo.Create(ctx, thread))
		require.NoError(t, thread.AppendExchange("hi", "hello"))
		thread.ClearEvents()
		require.NoError(t, repo.Update(ctx, thread))
		last = thread.ID()
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, repo.Create(ctx, chat.NewThread(uuid.New(), uuid.New())))

	got, err := repo.ListByUser(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, last, got[0].ID())
}

func TestTxRunnerCommitReturnsCollectedEvents(t *testing.T) {
	db := newTestDB(t)
	runner := NewTxRunner(db)
	ctx := context.Background()

	m := readyMeal(t, uuid.New(), time.Now().UTC())
	events, err := runner.InTx(ctx, func(uow bus.UnitOfWork) error {
		if err := uow.Meals().Create(ctx, m); err != nil {
			return err
		}
		uow.Collect(meal.CreatedFromSuggestionEvent{
			MealID: m.ID(), UserID: m.UserID(), Multiplier: 1, CreatedAt: time.Now().UTC(),
		})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	_, err = NewMealRepository(db).FindByID(ctx, m.ID())
	assert.NoError(t, err)
}

func TestTxRunnerRollbackDiscardsWritesAndEvents(t *testing.T) {
	db := newTestDB(t)
	runner := NewTxRunner(db)
	ctx := context.Background()

	boom := errors.New("boom")
	m := readyMeal(t, uuid.New(), time.Now().UTC())
	events, err := runner.InTx(ctx, func(uow bus.UnitOfWork) error {
		if err := uow.Meals().Create(ctx, m); err != nil {
			return err
		}
		uow.Collect(meal.CreatedFromSuggestionEvent{
			MealID: m.ID(), UserID: m.UserID(), Multiplier: 1, CreatedAt: time.Now().UTC(),
		})
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, events)

	_, err = NewMealRepository(db).FindByID(ctx, m.ID())
	assert.ErrorIs(t, err, outbound.ErrNotFound)
}
