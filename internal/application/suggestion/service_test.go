package suggestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mealapp "github.com/nutrisnap/v2/internal/application/meal"
	"github.com/nutrisnap/v2/internal/application/nutrition"
	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/shared"
	"github.com/nutrisnap/v2/internal/domain/suggestion"
	"github.com/nutrisnap/v2/internal/domain/user"
	"github.com/nutrisnap/v2/internal/ports/outbound"
	apperrors "github.com/nutrisnap/v2/pkg/errors"
	"github.com/nutrisnap/v2/test/testutils"
)

const modelResponse = `{"suggestions": [
	{"name": "Seared tuna with brown rice", "description": "Sesame-crusted tuna over brown rice", "ingredients": ["tuna", "brown rice", "sesame"], "calories": 520, "protein": 42, "carbs": 48, "fat": 16, "portion_type": "plate"},
	{"name": "Chicken burrito bowl", "description": "Shredded chicken with beans and rice", "ingredients": ["chicken", "black beans", "rice"], "calories": 610, "protein": 45, "carbs": 66, "fat": 17, "portion_type": "bowl"},
	{"name": "Spinach feta omelette", "description": "Three-egg omelette with spinach and feta", "ingredients": ["egg", "spinach", "feta"], "calories": 380, "protein": 26, "carbs": 6, "fat": 28, "portion_type": "plate"}
]}`

type fakeModel struct {
	response string
	err      error
	calls    int
	lastUser string
}

func (f *fakeModel) GenerateSuggestions(ctx context.Context, system, userPrompt string) (string, error) {
	f.calls++
	f.lastUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeUow struct {
	meals  *testutils.MemMealRepo
	events []shared.DomainEvent
}

func (u *fakeUow) Meals() outbound.MealRepository                 { return u.meals }
func (u *fakeUow) Users() outbound.UserRepository                 { return nil }
func (u *fakeUow) Notifications() outbound.NotificationRepository { return nil }
func (u *fakeUow) Threads() outbound.ChatThreadRepository         { return nil }
func (u *fakeUow) Collect(events ...shared.DomainEvent) {
	u.events = append(u.events, events...)
}

type harness struct {
	service *Service
	store   *testutils.MemSessionStore
	model   *fakeModel
	meals   *testutils.MemMealRepo
	user    *user.User
	uow     *fakeUow
}

func newHarness(t *testing.T, u *user.User) *harness {
	t.Helper()
	store := testutils.NewMemSessionStore()
	model := &fakeModel{response: modelResponse}
	users := testutils.NewMemUserRepo(u)
	mealRepo := testutils.NewMemMealRepo()
	clock := testutils.FixedClock{T: time.Now().UTC()}

	var lookup *nutrition.Service
	mealSvc := mealapp.NewService(
		mealRepo,
		users,
		nil,
		nil,
		lookup,
		testutils.NewMemCache(),
		bus.NewPublisher(zap.NewNop(), 1, 16, time.Second),
		outbound.NopMetrics{},
		outbound.UUIDGenerator{},
		clock,
		zap.NewNop(),
	)

	return &harness{
		service: NewService(store, model, users, mealSvc, outbound.NopMetrics{}, outbound.UUIDGenerator{}, clock, zap.NewNop()),
		store:   store,
		model:   model,
		meals:   mealRepo,
		user:    u,
		uow:     &fakeUow{meals: mealRepo},
	}
}

func (h *harness) generate(t *testing.T) *suggestion.Session {
	t.Helper()
	result, err := h.service.handleGenerate(context.Background(), h.uow, GenerateSuggestionsCommand{UserID: h.user.ID()})
	require.NoError(t, err)
	return result.(*suggestion.Session)
}

func TestGenerateUsesModelOutput(t *testing.T) {
	h := newHarness(t, testutils.NewUser())

	session := h.generate(t)

	require.Len(t, session.Active, 3)
	names := make([]string, 0, 3)
	for _, sug := range session.Active {
		assert.Equal(t, suggestion.SourceModel, sug.Source)
		assert.NotEmpty(t, sug.Fingerprint)
		names = append(names, sug.Name)
	}
	assert.Contains(t, names, "Seared tuna with brown rice")
	assert.Contains(t, names, "Chicken burrito bowl")
	assert.Contains(t, names, "Spinach feta omelette")

	stored, err := h.store.Get(context.Background(), h.user.ID())
	require.NoError(t, err)
	assert.Equal(t, session.ID, stored.ID)

	assert.Contains(t, h.model.lastUser, "RECOMP")
	assert.Contains(t, h.model.lastUser, "English")
}

func TestGenerateFallsBackWhenModelFails(t *testing.T) {
	h := newHarness(t, testutils.NewUser())
	h.model.err = errors.New("upstream 503")

	session := h.generate(t)

	require.Len(t, session.Active, 3)
	for _, sug := range session.Active {
		assert.Equal(t, suggestion.SourceFallback, sug.Source)
		assert.Greater(t, sug.MacroEstimate.Calories, 0.0)
	}
}

func TestGenerateFallsBackOnGarbageResponse(t *testing.T) {
	h := newHarness(t, testutils.NewUser())
	h.model.response = "I would be happy to help you plan meals."

	session := h.generate(t)

	require.Len(t, session.Active, 3)
	for _, sug := range session.Active {
		assert.Equal(t, suggestion.SourceFallback, sug.Source)
	}
}

func TestRegenerateRetiresActiveAndServesUnseen(t *testing.T) {
	h := newHarness(t, testutils.NewUser())
	first := h.generate(t)

	firstPrints := make(map[string]bool)
	for _, sug := range first.Active {
		firstPrints[sug.Fingerprint] = true
	}

	// Model repeats itself, so the second round must be topped up from
	// the fallback library.
	result, err := h.service.handleRegenerate(context.Background(), h.uow, RegenerateSuggestionsCommand{
		UserID:    h.user.ID(),
		SessionID: first.ID,
	})
	require.NoError(t, err)
	second := result.(*suggestion.Session)

	require.Len(t, second.Active, 3)
	for _, sug := range second.Active {
		assert.False(t, firstPrints[sug.Fingerprint], "regeneration must not repeat %s", sug.Name)
		assert.Equal(t, suggestion.SourceFallback, sug.Source)
	}

	require.Len(t, second.History, 3)
	for _, entry := range second.History {
		assert.Equal(t, suggestion.OutcomeRegenerated, entry.Outcome.Kind)
		assert.True(t, second.Seen[entry.Suggestion.Fingerprint])
	}
	assert.Greater(t, second.Version, first.Version)
}

func TestAcceptMaterializesScaledMeal(t *testing.T) {
	h := newHarness(t, testutils.NewUser())
	session := h.generate(t)
	picked := session.Active[0]

	result, err := h.service.handleAccept(context.Background(), h.uow, AcceptSuggestionCommand{
		UserID:       h.user.ID(),
		SessionID:    session.ID,
		SuggestionID: picked.ID,
		Multiplier:   2,
		MealType:     "dinner",
	})
	require.NoError(t, err)
	accepted := result.(AcceptResult)

	assert.Equal(t, meal.StatusReady, accepted.Meal.Status)
	assert.Equal(t, meal.TypeDinner, accepted.Meal.MealType)
	assert.Equal(t, picked.Name, accepted.Meal.DishName)
	require.NotNil(t, accepted.Meal.Nutrition)
	assert.InDelta(t, picked.MacroEstimate.Calories*2, accepted.Meal.Nutrition.Calories, 0.01)
	assert.InDelta(t, picked.MacroEstimate.Protein*2, accepted.Meal.Nutrition.Protein, 0.01)

	_, err = h.meals.FindByID(context.Background(), accepted.Meal.ID)
	assert.NoError(t, err)

	require.Len(t, accepted.Session.Active, 2)
	require.Len(t, accepted.Session.History, 1)
	assert.Equal(t, suggestion.OutcomeAccepted, accepted.Session.History[0].Outcome.Kind)
	assert.Equal(t, 2, accepted.Session.History[0].Outcome.Multiplier)
	assert.True(t, accepted.Session.Seen[picked.Fingerprint])

	var linked bool
	for _, event := range h.uow.events {
		if _, ok := event.(meal.CreatedFromSuggestionEvent); ok {
			linked = true
		}
	}
	assert.True(t, linked, "accepting must link the meal back to its suggestion")
}

func TestAcceptRejectsOutOfRangeMultiplier(t *testing.T) {
	h := newHarness(t, testutils.NewUser())
	session := h.generate(t)

	_, err := h.service.handleAccept(context.Background(), h.uow, AcceptSuggestionCommand{
		UserID:       h.user.ID(),
		SessionID:    session.ID,
		SuggestionID: session.Active[0].ID,
		Multiplier:   9,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))

	// The failed mutation must not consume the suggestion.
	stored, getErr := h.store.Get(context.Background(), h.user.ID())
	require.NoError(t, getErr)
	assert.Len(t, stored.Active, 3)
}

func TestAcceptSurfacesCasConflict(t *testing.T) {
	h := newHarness(t, testutils.NewUser())
	session := h.generate(t)
	h.store.ConflictsToInject = 1

	_, err := h.service.handleAccept(context.Background(), h.uow, AcceptSuggestionCommand{
		UserID:       h.user.ID(),
		SessionID:    session.ID,
		SuggestionID: session.Active[0].ID,
		Multiplier:   1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.GetCode(err))
}

func TestRejectRecordsOutcome(t *testing.T) {
	h := newHarness(t, testutils.NewUser())
	session := h.generate(t)
	picked := session.Active[1]

	result, err := h.service.handleReject(context.Background(), h.uow, RejectSuggestionCommand{
		UserID:       h.user.ID(),
		SessionID:    session.ID,
		SuggestionID: picked.ID,
		Reason:       "too spicy",
	})
	require.NoError(t, err)
	updated := result.(*suggestion.Session)

	require.Len(t, updated.Active, 2)
	require.Len(t, updated.History, 1)
	assert.Equal(t, suggestion.OutcomeRejected, updated.History[0].Outcome.Kind)
	assert.Equal(t, "too spicy", updated.History[0].Outcome.Reason)

	var published bool
	for _, event := range h.uow.events {
		if e, ok := event.(suggestion.RejectedEvent); ok {
			published = true
			assert.Equal(t, picked.Fingerprint, e.Fingerprint)
		}
	}
	assert.True(t, published)
}

func TestSessionLookupFailures(t *testing.T) {
	h := newHarness(t, testutils.NewUser())
	session := h.generate(t)

	t.Run("WrongSessionID", func(t *testing.T) {
		_, err := h.service.handleGetSession(context.Background(), GetSessionQuery{
			UserID:    h.user.ID(),
			SessionID: uuid.New(),
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
	})

	t.Run("MissingSession", func(t *testing.T) {
		_, err := h.service.handleGetSession(context.Background(), GetSessionQuery{
			UserID:    uuid.New(),
			SessionID: session.ID,
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
	})

	t.Run("RegenerateMissing", func(t *testing.T) {
		_, err := h.service.handleRegenerate(context.Background(), h.uow, RegenerateSuggestionsCommand{
			UserID:    uuid.New(),
			SessionID: session.ID,
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
	})
}

func TestDiscardSession(t *testing.T) {
	h := newHarness(t, testutils.NewUser())
	session := h.generate(t)

	t.Run("WrongIDLeavesSession", func(t *testing.T) {
		_, err := h.service.handleDiscard(context.Background(), h.uow, DiscardSessionCommand{
			UserID:    h.user.ID(),
			SessionID: uuid.New(),
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
	})

	t.Run("MatchingIDDeletes", func(t *testing.T) {
		_, err := h.service.handleDiscard(context.Background(), h.uow, DiscardSessionCommand{
			UserID:    h.user.ID(),
			SessionID: session.ID,
		})
		require.NoError(t, err)
		_, err = h.store.Get(context.Background(), h.user.ID())
		assert.ErrorIs(t, err, outbound.ErrSessionNotFound)
	})

	t.Run("AlreadyGoneIsIdempotent", func(t *testing.T) {
		_, err := h.service.handleDiscard(context.Background(), h.uow, DiscardSessionCommand{
			UserID:    h.user.ID(),
			SessionID: session.ID,
		})
		assert.NoError(t, err)
	})
}

func TestGetHistoryReturnsRetiredSuggestions(t *testing.T) {
	h := newHarness(t, testutils.NewUser())
	session := h.generate(t)

	_, err := h.service.handleReject(context.Background(), h.uow, RejectSuggestionCommand{
		UserID:       h.user.ID(),
		SessionID:    session.ID,
		SuggestionID: session.Active[0].ID,
	})
	require.NoError(t, err)

	result, err := h.service.handleGetHistory(context.Background(), GetSessionHistoryQuery{
		UserID:    h.user.ID(),
		SessionID: session.ID,
	})
	require.NoError(t, err)
	history := result.([]suggestion.HistoryEntry)
	require.Len(t, history, 1)
	assert.Equal(t, suggestion.OutcomeRejected, history[0].Outcome.Kind)
}

func TestSelectFallbackHonorsConstraints(t *testing.T) {
	userID := uuid.New()

	t.Run("VeganPreference", func(t *testing.T) {
		profile := testutils.DefaultProfile()
		profile.DietaryPreferences = []string{"vegan"}
		veganNames := map[string]bool{
			"Tofu vegetable curry":    true,
			"Lentil soup with bread":  true,
			"Chickpea spinach stew":   true,
			"Black bean burrito bowl": true,
			"Vegan buddha bowl":       true,
			"Tempeh lettuce wraps":    true,
		}
		picks := SelectFallback(&profile, userID, map[string]bool{}, 6)
		require.NotEmpty(t, picks)
		for _, sug := range picks {
			assert.True(t, veganNames[sug.Name], "%s is not vegan", sug.Name)
		}
	})

	t.Run("AllergyExcludesIngredient", func(t *testing.T) {
		profile := testutils.DefaultProfile()
		profile.Allergies = []string{"shrimp"}
		picks := SelectFallback(&profile, userID, map[string]bool{}, 30)
		require.NotEmpty(t, picks)
		for _, sug := range picks {
			for _, ingredient := range sug.Ingredients {
				assert.NotContains(t, ingredient, "shrimp")
			}
		}
	})

	t.Run("SeenFingerprintsExcluded", func(t *testing.T) {
		first := SelectFallback(nil, userID, map[string]bool{}, 3)
		require.Len(t, first, 3)
		seen := map[string]bool{first[0].Fingerprint: true}
		second := SelectFallback(nil, userID, seen, 3)
		for _, sug := range second {
			assert.NotEqual(t, first[0].Fingerprint, sug.Fingerprint)
		}
	})

	t.Run("RotationIsStablePerUser", func(t *testing.T) {
		a := SelectFallback(nil, userID, map[string]bool{}, 3)
		b := SelectFallback(nil, userID, map[string]bool{}, 3)
		require.Len(t, b, 3)
		for i := range a {
			assert.Equal(t, a[i].Name, b[i].Name)
		}
	})
}

func TestLanguageNameFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, "Vietnamese", LanguageName("vi"))
	assert.Equal(t, "English", LanguageName("xx"))
	assert.Equal(t, "English", LanguageName(""))
}
