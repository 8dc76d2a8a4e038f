package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/domain/shared"
	"github.com/nutrisnap/v2/internal/domain/user"
	"github.com/nutrisnap/v2/internal/ports/outbound"
	apperrors "github.com/nutrisnap/v2/pkg/errors"
	"github.com/nutrisnap/v2/test/testutils"
)

type fakeUow struct {
	users  *testutils.MemUserRepo
	prefs  *testutils.MemNotificationRepo
	events []shared.DomainEvent
}

func (u *fakeUow) Meals() outbound.MealRepository                 { return nil }
func (u *fakeUow) Users() outbound.UserRepository                 { return u.users }
func (u *fakeUow) Notifications() outbound.NotificationRepository { return u.prefs }
func (u *fakeUow) Threads() outbound.ChatThreadRepository         { return nil }
func (u *fakeUow) Collect(events ...shared.DomainEvent) {
	u.events = append(u.events, events...)
}

func newService(users *testutils.MemUserRepo, prefs *testutils.MemNotificationRepo, cache *testutils.MemCache) *Service {
	return NewService(users, prefs, cache, outbound.SystemClock{}, zap.NewNop())
}

func validProfile() ProfileInput {
	return ProfileInput{
		Age:           28,
		Sex:           "female",
		HeightCm:      165,
		WeightKg:      60,
		ActivityLevel: "moderate",
		Goal:          "CUT",
	}
}

func TestCreateUser(t *testing.T) {
	users := testutils.NewMemUserRepo()
	s := newService(users, testutils.NewMemNotificationRepo(), testutils.NewMemCache())
	uow := &fakeUow{users: users}
	id := uuid.New()

	result, err := s.handleCreate(context.Background(), uow, CreateUserCommand{
		UserID:   id,
		Email:    "ana@example.com",
		Timezone: "Europe/Berlin",
	})
	require.NoError(t, err)
	dto := result.(UserDTO)
	assert.Equal(t, "en", dto.Language)
	assert.False(t, dto.Onboarded)

	t.Run("DuplicateConflicts", func(t *testing.T) {
		_, err := s.handleCreate(context.Background(), uow, CreateUserCommand{
			UserID:   id,
			Email:    "ana@example.com",
			Timezone: "Europe/Berlin",
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeConflict, apperrors.GetCode(err))
	})

	t.Run("BogusTimezoneRejected", func(t *testing.T) {
		_, err := s.handleCreate(context.Background(), uow, CreateUserCommand{
			UserID:   uuid.New(),
			Email:    "bo@example.com",
			Timezone: "Mars/Olympus",
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	})
}

func TestOnboardingLifecycle(t *testing.T) {
	users := testutils.NewMemUserRepo()
	s := newService(users, testutils.NewMemNotificationRepo(), testutils.NewMemCache())
	uow := &fakeUow{users: users}
	id := uuid.New()

	_, err := s.handleCreate(context.Background(), uow, CreateUserCommand{
		UserID: id, Email: "kim@example.com", Timezone: "Asia/Seoul",
	})
	require.NoError(t, err)

	result, err := s.handleCompleteOnboarding(context.Background(), uow, CompleteOnboardingCommand{
		UserID:  id,
		Profile: validProfile(),
	})
	require.NoError(t, err)
	dto := result.(ProfileDTO)
	assert.Equal(t, user.GoalCut, dto.Profile.Goal)
	assert.Greater(t, dto.Targets.Calories, 0.0)
	assert.Greater(t, dto.Targets.ProteinG, 0.0)

	var onboarded bool
	for _, event := range uow.events {
		if _, ok := event.(user.OnboardedEvent); ok {
			onboarded = true
		}
	}
	assert.True(t, onboarded)

	t.Run("SecondOnboardingConflicts", func(t *testing.T) {
		_, err := s.handleCompleteOnboarding(context.Background(), uow, CompleteOnboardingCommand{
			UserID:  id,
			Profile: validProfile(),
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeConflict, apperrors.GetCode(err))
	})
}

func TestUpdateProfileEvictsCachedProjections(t *testing.T) {
	u := testutils.NewUser()
	users := testutils.NewMemUserRepo(u)
	cache := testutils.NewMemCache()
	s := newService(users, testutils.NewMemNotificationRepo(), cache)
	uow := &fakeUow{users: users}

	// Warm both cached projections.
	_, err := s.handleGetUser(context.Background(), GetUserQuery{UserID: u.ID()})
	require.NoError(t, err)
	_, err = s.handleGetProfile(context.Background(), GetProfileQuery{UserID: u.ID()})
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	profile := validProfile()
	profile.Goal = "BULK"
	_, err = s.handleUpdateProfile(context.Background(), uow, UpdateProfileCommand{
		UserID:  u.ID(),
		Profile: profile,
	})
	require.NoError(t, err)

	require.Len(t, uow.events, 1)
	updated, ok := uow.events[0].(user.ProfileUpdatedEvent)
	require.True(t, ok)

	require.NoError(t, s.OnProfileUpdated(context.Background(), updated))
	assert.Equal(t, 0, cache.Len())

	result, err := s.handleGetProfile(context.Background(), GetProfileQuery{UserID: u.ID()})
	require.NoError(t, err)
	assert.Equal(t, user.GoalBulk, result.(ProfileDTO).Profile.Goal)
}

func TestUpdateNotificationPrefs(t *testing.T) {
	u := testutils.NewUser()
	users := testutils.NewMemUserRepo(u)
	prefs := testutils.NewMemNotificationRepo()
	s := newService(users, prefs, testutils.NewMemCache())
	uow := &fakeUow{users: users, prefs: prefs}

	valid := user.NotificationPrefs{
		Enabled:            true,
		MealsEnabled:       true,
		WaterEnabled:       true,
		BreakfastMinute:    8 * 60,
		LunchMinute:        12*60 + 30,
		DinnerMinute:       19 * 60,
		WaterIntervalHours: 2,
		Timezone:           "America/New_York",
	}

	_, err := s.handleUpdatePrefs(context.Background(), uow, UpdateNotificationPrefsCommand{
		UserID: u.ID(),
		Prefs:  valid,
	})
	require.NoError(t, err)

	stored, err := prefs.FindPrefs(context.Background(), u.ID())
	require.NoError(t, err)
	assert.Equal(t, u.ID(), stored.UserID)
	assert.Equal(t, 12*60+30, stored.LunchMinute)

	t.Run("MinuteOutOfRange", func(t *testing.T) {
		bad := valid
		bad.DinnerMinute = 1440
		_, err := s.handleUpdatePrefs(context.Background(), uow, UpdateNotificationPrefsCommand{UserID: u.ID(), Prefs: bad})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("WaterIntervalTooShort", func(t *testing.T) {
		bad := valid
		bad.WaterIntervalHours = 0
		_, err := s.handleUpdatePrefs(context.Background(), uow, UpdateNotificationPrefsCommand{UserID: u.ID(), Prefs: bad})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	})
}

func TestRegisterFcmTokenIsUpsert(t *testing.T) {
	u := testutils.NewUser()
	users := testutils.NewMemUserRepo(u)
	prefs := testutils.NewMemNotificationRepo()
	s := newService(users, prefs, testutils.NewMemCache())
	uow := &fakeUow{users: users, prefs: prefs}

	cmd := RegisterFcmTokenCommand{UserID: u.ID(), Token: "fcm-abc", Platform: "android"}
	for i := 0; i < 2; i++ {
		_, err := s.handleRegisterToken(context.Background(), uow, cmd)
		require.NoError(t, err)
	}

	tokens, err := prefs.ActiveTokens(context.Background(), u.ID())
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "fcm-abc", tokens[0].Token)
	assert.True(t, tokens[0].IsActive)
}

func TestGetUserMissing(t *testing.T) {
	s := newService(testutils.NewMemUserRepo(), testutils.NewMemNotificationRepo(), testutils.NewMemCache())
	_, err := s.handleGetUser(context.Background(), GetUserQuery{UserID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
}

func TestGetProfileUsesCache(t *testing.T) {
	u := testutils.NewUser()
	users := testutils.NewMemUserRepo(u)
	cache := testutils.NewMemCache()
	s := newService(users, testutils.NewMemNotificationRepo(), cache)

	first, err := s.handleGetProfile(context.Background(), GetProfileQuery{UserID: u.ID()})
	require.NoError(t, err)

	// A second service with an empty repository but the same cache must
	// still answer from the warmed projection.
	detached := newService(testutils.NewMemUserRepo(), testutils.NewMemNotificationRepo(), cache)
	second, err := detached.handleGetProfile(context.Background(), GetProfileQuery{UserID: u.ID()})
	require.NoError(t, err)
	assert.Equal(t, first.(ProfileDTO).Targets, second.(ProfileDTO).Targets)
}
