package meal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/application/nutrition"
	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/shared"
	"github.com/nutrisnap/v2/internal/domain/user"
	"github.com/nutrisnap/v2/internal/ports/outbound"
	apperrors "github.com/nutrisnap/v2/pkg/errors"
)

// In-memory fakes

type memMealRepo struct {
	mu     sync.Mutex
	meals  map[uuid.UUID]*meal.Meal
	status map[uuid.UUID]meal.Status
}

func newMemMealRepo() *memMealRepo {
	return &memMealRepo{
		meals:  make(map[uuid.UUID]*meal.Meal),
		status: make(map[uuid.UUID]meal.Status),
	}
}

func (r *memMealRepo) Create(ctx context.Context, m *meal.Meal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meals[m.ID()] = m
	r.status[m.ID()] = m.Status()
	return nil
}

func (r *memMealRepo) Update(ctx context.Context, m *meal.Meal) error {
	return r.Create(ctx, m)
}

func (r *memMealRepo) UpdateIfStatus(ctx context.Context, m *meal.Meal, expected meal.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status[m.ID()] != expected {
		return false, nil
	}
	r.meals[m.ID()] = m
	r.status[m.ID()] = m.Status()
	return true, nil
}

func (r *memMealRepo) FindByID(ctx context.Context, id uuid.UUID) (*meal.Meal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meals[id]
	if !ok {
		return nil, outbound.ErrNotFound
	}
	return m, nil
}

func (r *memMealRepo) FindByUserAndRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*meal.Meal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*meal.Meal
	for _, m := range r.meals {
		if m.UserID() == userID && m.Status() != meal.StatusInactive &&
			!m.ConsumedAt().Before(from) && m.ConsumedAt().Before(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

type memUserRepo struct{ users map[uuid.UUID]*user.User }

func (r memUserRepo) Create(ctx context.Context, u *user.User) error { return nil }
func (r memUserRepo) Update(ctx context.Context, u *user.User) error { return nil }
func (r memUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, outbound.ErrNotFound
	}
	return u, nil
}

type fakeImageStore struct{ putErr error }

func (f fakeImageStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	return "s3://meals/" + key, nil
}
func (f fakeImageStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://images.example.com/" + key, nil
}
func (f fakeImageStore) Delete(ctx context.Context, key string) error { return nil }

type fakeVision struct {
	response string
	err      error
}

func (f fakeVision) AnalyzeImage(ctx context.Context, imageURL, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.5}, nil
}

type fakeIndex struct{ matches map[string]outbound.VectorMatch }

func (f fakeIndex) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]outbound.VectorMatch, error) {
	if namespace != outbound.NamespaceIngredients {
		return nil, nil
	}
	var out []outbound.VectorMatch
	for _, m := range f.matches {
		out = append(out, m)
	}
	return out, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, outbound.ErrCacheMiss
	}
	return v, nil
}
func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}
func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}
func (c *memCache) DeletePattern(ctx context.Context, pattern string) error { return nil }
func (c *memCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

type memUow struct {
	meals  *memMealRepo
	events []shared.DomainEvent
}

func (u *memUow) Meals() outbound.MealRepository                 { return u.meals }
func (u *memUow) Users() outbound.UserRepository                 { return nil }
func (u *memUow) Notifications() outbound.NotificationRepository { return nil }
func (u *memUow) Threads() outbound.ChatThreadRepository         { return nil }
func (u *memUow) Collect(events ...shared.DomainEvent) {
	u.events = append(u.events, events...)
}

func newTestService(repo *memMealRepo, vision fakeVision, index fakeIndex) *Service {
	lookup := nutrition.NewService(fakeEmbedder{}, index, newMemCache(), zap.NewNop())
	publisher := bus.NewPublisher(zap.NewNop(), 2, 32, 5*time.Second)
	return NewService(
		repo,
		memUserRepo{users: map[uuid.UUID]*user.User{}},
		fakeImageStore{},
		vision,
		lookup,
		newMemCache(),
		publisher,
		outbound.NopMetrics{},
		outbound.UUIDGenerator{},
		outbound.SystemClock{},
		zap.NewNop(),
	)
}

const visionOK = `{"dish_name":"chicken rice","items":[` +
	`{"name":"chicken breast","quantity":150,"unit":"g","calories":200,"protein":40,"carbs":0,"fat":4,"confidence":0.9},` +
	`{"name":"white rice","quantity":200,"unit":"g","calories":260,"protein":5,"carbs":56,"fat":0.5,"confidence":0.85}]}`

func uploadedMeal(t *testing.T, s *Service, repo *memMealRepo, userID uuid.UUID) meal.ImageUploadedEvent {
	t.Helper()
	uow := &memUow{meals: repo}
	result, err := s.handleUploadImage(context.Background(), uow, UploadMealImageCommand{
		UserID:      userID,
		Image:       []byte("jpeg-bytes"),
		ContentType: "image/jpeg",
		MealType:    "lunch",
	})
	require.NoError(t, err)
	dto := result.(MealDTO)
	assert.Equal(t, meal.StatusProcessing, dto.Status)

	require.Len(t, uow.events, 1)
	event, ok := uow.events[0].(meal.ImageUploadedEvent)
	require.True(t, ok)
	return event
}

func TestUploadMealImageValidation(t *testing.T) {
	repo := newMemMealRepo()
	s := newTestService(repo, fakeVision{}, fakeIndex{})
	uow := &memUow{meals: repo}
	userID := uuid.New()

	t.Run("BadContentType", func(t *testing.T) {
		_, err := s.handleUploadImage(context.Background(), uow, UploadMealImageCommand{
			UserID: userID, Image: []byte("x"), ContentType: "image/gif", MealType: "lunch",
		})
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("Oversize", func(t *testing.T) {
		_, err := s.handleUploadImage(context.Background(), uow, UploadMealImageCommand{
			UserID: userID, Image: make([]byte, maxImageBytes+1), ContentType: "image/png", MealType: "lunch",
		})
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("UnknownMealType", func(t *testing.T) {
		_, err := s.handleUploadImage(context.Background(), uow, UploadMealImageCommand{
			UserID: userID, Image: []byte("x"), ContentType: "image/png", MealType: "brunch",
		})
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	})
}

func TestAnalysisPipelineHappyPath(t *testing.T) {
	repo := newMemMealRepo()
	index := fakeIndex{matches: map[string]outbound.VectorMatch{
		"hit": {Name: "chicken breast", FdcID: "171077", Score: 0.9,
			Per100g: outbound.Per100g{Calories: 165, Protein: 31, Carbs: 0, Fat: 3.6}},
	}}
	s := newTestService(repo, fakeVision{response: visionOK}, index)
	userID := uuid.New()

	event := uploadedMeal(t, s, repo, userID)
	require.NoError(t, s.OnImageUploaded(context.Background(), event))

	m, err := repo.FindByID(context.Background(), event.MealID)
	require.NoError(t, err)
	assert.Equal(t, meal.StatusReady, m.Status())
	assert.Equal(t, "chicken rice", m.DishName())
	require.NotNil(t, m.Nutrition())
	require.NotNil(t, m.ReadyAt())
	assert.NoError(t, m.CheckInvariants())

	// Both items matched the curated index, so provenance upgraded
	for _, item := range m.FoodItems() {
		assert.Equal(t, meal.ProvenanceIndex, item.Provenance)
		assert.Equal(t, "171077", item.FdcID)
	}
}

func TestAnalysisPipelineSecondInvocationIsNoop(t *testing.T) {
	repo := newMemMealRepo()
	s := newTestService(repo, fakeVision{response: visionOK}, fakeIndex{})
	event := uploadedMeal(t, s, repo, uuid.New())

	require.NoError(t, s.OnImageUploaded(context.Background(), event))
	m, _ := repo.FindByID(context.Background(), event.MealID)
	readyAt := *m.ReadyAt()

	require.NoError(t, s.OnImageUploaded(context.Background(), event))
	m, _ = repo.FindByID(context.Background(), event.MealID)
	assert.Equal(t, meal.StatusReady, m.Status())
	assert.Equal(t, readyAt, *m.ReadyAt())
}

func TestAnalysisPipelineFailures(t *testing.T) {
	cases := []struct {
		name   string
		vision fakeVision
		reason string
	}{
		{"Refusal", fakeVision{response: "I cannot identify the contents of this image."}, ReasonContentBlocked},
		{"Garbage", fakeVision{response: "no json here {]"}, ReasonUnparseable},
		{"EmptyItems", fakeVision{response: `{"dish_name":"","items":[]}`}, ReasonNoFoodDetected},
		{"ProviderError", fakeVision{err: errors.New("502 bad gateway")}, ReasonVisionError},
		{"ProviderTimeout", fakeVision{err: context.DeadlineExceeded}, ReasonVisionTimeout},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			repo := newMemMealRepo()
			s := newTestService(repo, c.vision, fakeIndex{})
			event := uploadedMeal(t, s, repo, uuid.New())

			require.NoError(t, s.OnImageUploaded(context.Background(), event))

			m, err := repo.FindByID(context.Background(), event.MealID)
			require.NoError(t, err)
			assert.Equal(t, meal.StatusFailed, m.Status())
			assert.Equal(t, c.reason, m.ErrorMessage())
			assert.Nil(t, m.Nutrition())
		})
	}
}

func TestCreateManualMeal(t *testing.T) {
	repo := newMemMealRepo()
	s := newTestService(repo, fakeVision{}, fakeIndex{})
	uow := &memUow{meals: repo}

	result, err := s.CreateManual(context.Background(), uow, CreateManualMealCommand{
		UserID:   uuid.New(),
		DishName: "overnight oats",
		MealType: "breakfast",
		Items: []ManualItemInput{
			{Name: "oats", Quantity: 80, Unit: "g", Calories: 304, Protein: 13, Carbs: 54, Fat: 5.5},
			{Name: "milk", Quantity: 200, Unit: "ml", Calories: 84, Protein: 7, Carbs: 10, Fat: 2},
		},
	})

	require.NoError(t, err)
	dto := result.(MealDTO)
	assert.Equal(t, meal.StatusReady, dto.Status)
	assert.InDelta(t, 388, dto.Nutrition.Calories, 0.001)
	assert.NotNil(t, dto.ReadyAt)
}

func TestEditMeal(t *testing.T) {
	repo := newMemMealRepo()
	s := newTestService(repo, fakeVision{}, fakeIndex{})
	uow := &memUow{meals: repo}
	userID := uuid.New()

	created, err := s.CreateManual(context.Background(), uow, CreateManualMealCommand{
		UserID:   userID,
		DishName: "snack",
		MealType: "snack",
		Items:    []ManualItemInput{{Name: "apple", Quantity: 1, Unit: "serving", Calories: 95, Protein: 0.5, Carbs: 25, Fat: 0.3}},
	})
	require.NoError(t, err)
	mealID := created.(MealDTO).ID

	t.Run("AddItem", func(t *testing.T) {
		result, err := s.handleEdit(context.Background(), uow, EditMealCommand{
			UserID: userID,
			MealID: mealID,
			Edit: meal.Edit{
				Kind: meal.EditAddItem,
				Item: meal.FoodItem{
					ID: uuid.New(), Name: "peanut butter", Quantity: 30, Unit: "g",
					Calories: 180, Protein: 7, Carbs: 6, Fat: 16, Provenance: meal.ProvenanceModel,
				},
			},
		})
		require.NoError(t, err)
		dto := result.(MealDTO)
		assert.Len(t, dto.FoodItems, 2)
		assert.InDelta(t, 275, dto.Nutrition.Calories, 0.001)
		assert.Equal(t, 1, dto.EditCount)
	})

	t.Run("OtherUser_Forbidden", func(t *testing.T) {
		_, err := s.handleEdit(context.Background(), uow, EditMealCommand{
			UserID: uuid.New(),
			MealID: mealID,
			Edit:   meal.Edit{Kind: meal.EditAdjustQuantity, Quantity: 2},
		})
		assert.Equal(t, apperrors.CodeForbidden, apperrors.GetCode(err))
	})

	t.Run("NonReadyMeal_PreconditionFailed", func(t *testing.T) {
		event := uploadedMeal(t, s, repo, userID)
		_, err := s.handleEdit(context.Background(), uow, EditMealCommand{
			UserID: userID,
			MealID: event.MealID,
			Edit:   meal.Edit{Kind: meal.EditAdjustQuantity, Quantity: 2},
		})
		assert.Equal(t, apperrors.CodePreconditionFailed, apperrors.GetCode(err))
	})
}

func TestDeleteMealIdempotent(t *testing.T) {
	repo := newMemMealRepo()
	s := newTestService(repo, fakeVision{}, fakeIndex{})
	uow := &memUow{meals: repo}
	userID := uuid.New()

	created, err := s.CreateManual(context.Background(), uow, CreateManualMealCommand{
		UserID:   userID,
		DishName: "snack",
		MealType: "snack",
		Items:    []ManualItemInput{{Name: "apple", Quantity: 1, Calories: 95, Protein: 0.5, Carbs: 25, Fat: 0.3}},
	})
	require.NoError(t, err)
	mealID := created.(MealDTO).ID

	for i := 0; i < 2; i++ {
		result, err := s.handleDelete(context.Background(), uow, DeleteMealCommand{UserID: userID, MealID: mealID})
		require.NoError(t, err)
		assert.Equal(t, meal.StatusInactive, result.(MealDTO).Status)
	}

	// Deleted meals are invisible to reads
	_, err = s.handleGetMeal(context.Background(), GetMealQuery{UserID: userID, MealID: mealID})
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
}

func TestDailySummarySumsReadyMealsOnly(t *testing.T) {
	repo := newMemMealRepo()
	s := newTestService(repo, fakeVision{}, fakeIndex{})
	userID := uuid.New()
	s.users = memUserRepo{users: map[uuid.UUID]*user.User{
		userID: user.New(userID, "a@b.c", "UTC", "en"),
	}}
	uow := &memUow{meals: repo}

	consumedAt := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		_, err := s.CreateManual(context.Background(), uow, CreateManualMealCommand{
			UserID: userID, DishName: "meal", MealType: "lunch", ConsumedAt: consumedAt,
			Items: []ManualItemInput{{Name: "rice", Quantity: 100, Unit: "g", Calories: 130, Protein: 2.7, Carbs: 28, Fat: 0.3}},
		})
		require.NoError(t, err)
	}
	// A PROCESSING meal on the same day must not count
	uploadedMeal(t, s, repo, userID)

	result, err := s.handleDailySummary(context.Background(), GetDailySummaryQuery{UserID: userID, Date: "2026-08-24"})

	require.NoError(t, err)
	summary := result.(DailySummary)
	assert.Equal(t, 2, summary.MealCount)
	assert.InDelta(t, 260, summary.Totals.Calories, 0.001)
}
