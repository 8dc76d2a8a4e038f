package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/domain/shared"
	"github.com/nutrisnap/v2/internal/domain/user"
	"github.com/nutrisnap/v2/internal/ports/outbound"
	apperrors "github.com/nutrisnap/v2/pkg/errors"
)

const (
	userCacheTTL    = time.Hour
	profileCacheTTL = 30 * time.Minute
)

// Service implements the user use cases.
type Service struct {
	users    outbound.UserRepository
	prefs    outbound.NotificationRepository
	cache    outbound.CacheStore
	clock    outbound.Clock
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates the user application service.
func NewService(
	users outbound.UserRepository,
	prefs outbound.NotificationRepository,
	cache outbound.CacheStore,
	clock outbound.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:    users,
		prefs:    prefs,
		cache:    cache,
		clock:    clock,
		validate: validator.New(),
		logger:   logger.Named("user"),
	}
}

// Register wires the service's handlers and subscribers into the bus.
func (s *Service) Register(b *bus.Bus) {
	bus.RegisterCommand(b, s.handleCreate)
	bus.RegisterCommand(b, s.handleCompleteOnboarding)
	bus.RegisterCommand(b, s.handleUpdateProfile)
	bus.RegisterCommand(b, s.handleUpdatePrefs)
	bus.RegisterCommand(b, s.handleRegisterToken)
	bus.RegisterQuery(b, s.handleGetUser)
	bus.RegisterQuery(b, s.handleGetProfile)
	bus.RegisterQuery(b, s.handleGetPrefs)

	b.Subscribe(user.ProfileUpdatedEvent{}.EventName(), s.OnProfileUpdated)
	b.Subscribe(user.OnboardedEvent{}.EventName(), s.OnProfileUpdated)
}

func (s *Service) handleCreate(ctx context.Context, uow bus.UnitOfWork, cmd CreateUserCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	if _, err := time.LoadLocation(cmd.Timezone); err != nil {
		return nil, apperrors.NewInvalidInput("timezone must be a valid IANA zone")
	}
	if _, err := uow.Users().FindByID(ctx, cmd.UserID); err == nil {
		return nil, apperrors.NewConflict("user")
	} else if !errors.Is(err, outbound.ErrNotFound) {
		return nil, err
	}

	language := cmd.Language
	if language == "" {
		language = "en"
	}
	u := user.New(cmd.UserID, cmd.Email, cmd.Timezone, language)
	if err := uow.Users().Create(ctx, u); err != nil {
		return nil, err
	}
	return toUserDTO(u), nil
}

func (s *Service) handleCompleteOnboarding(ctx context.Context, uow bus.UnitOfWork, cmd CompleteOnboardingCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	u, err := s.load(ctx, uow.Users(), cmd.UserID)
	if err != nil {
		return nil, err
	}
	if u.Profile() != nil {
		return nil, apperrors.NewConflict("onboarding")
	}

	u.CompleteOnboarding(toProfile(cmd.Profile))
	if err := uow.Users().Update(ctx, u); err != nil {
		return nil, err
	}
	uow.Collect(u.Events()...)
	u.ClearEvents()
	return toProfileDTO(u), nil
}

func (s *Service) handleUpdateProfile(ctx context.Context, uow bus.UnitOfWork, cmd UpdateProfileCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	u, err := s.load(ctx, uow.Users(), cmd.UserID)
	if err != nil {
		return nil, err
	}

	u.UpdateProfile(toProfile(cmd.Profile))
	if err := uow.Users().Update(ctx, u); err != nil {
		return nil, err
	}
	uow.Collect(u.Events()...)
	u.ClearEvents()
	return toProfileDTO(u), nil
}

func (s *Service) handleUpdatePrefs(ctx context.Context, uow bus.UnitOfWork, cmd UpdateNotificationPrefsCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	if _, err := s.load(ctx, uow.Users(), cmd.UserID); err != nil {
		return nil, err
	}

	prefs := cmd.Prefs
	prefs.UserID = cmd.UserID
	if err := prefs.Validate(); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	if err := uow.Notifications().SavePrefs(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (s *Service) handleRegisterToken(ctx context.Context, uow bus.UnitOfWork, cmd RegisterFcmTokenCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	if _, err := s.load(ctx, uow.Users(), cmd.UserID); err != nil {
		return nil, err
	}

	token := user.FcmToken{
		Token:      cmd.Token,
		UserID:     cmd.UserID,
		Platform:   user.Platform(cmd.Platform),
		IsActive:   true,
		LastUsedAt: s.clock.Now(),
	}
	if err := uow.Notifications().RegisterToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *Service) handleGetUser(ctx context.Context, q GetUserQuery) (any, error) {
	key := fmt.Sprintf("user:%s", q.UserID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var dto UserDTO
		if json.Unmarshal(raw, &dto) == nil {
			return dto, nil
		}
	}

	u, err := s.load(ctx, s.users, q.UserID)
	if err != nil {
		return nil, err
	}
	dto := toUserDTO(u)
	if raw, err := json.Marshal(dto); err == nil {
		_ = s.cache.Set(ctx, key, raw, userCacheTTL)
	}
	return dto, nil
}

func (s *Service) handleGetProfile(ctx context.Context, q GetProfileQuery) (any, error) {
	key := fmt.Sprintf("user:%s:profile", q.UserID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var dto ProfileDTO
		if json.Unmarshal(raw, &dto) == nil {
			return dto, nil
		}
	}

	u, err := s.load(ctx, s.users, q.UserID)
	if err != nil {
		return nil, err
	}
	if u.Profile() == nil {
		return nil, apperrors.NewNotFound("profile", q.UserID.String())
	}
	dto := toProfileDTO(u)
	if raw, err := json.Marshal(dto); err == nil {
		_ = s.cache.Set(ctx, key, raw, profileCacheTTL)
	}
	return dto, nil
}

func (s *Service) handleGetPrefs(ctx context.Context, q GetNotificationPrefsQuery) (any, error) {
	prefs, err := s.prefs.FindPrefs(ctx, q.UserID)
	if errors.Is(err, outbound.ErrNotFound) {
		return nil, apperrors.NewNotFound("notification preferences", q.UserID.String())
	}
	if err != nil {
		return nil, err
	}
	return *prefs, nil
}

// OnProfileUpdated evicts every cached projection of the user.
func (s *Service) OnProfileUpdated(ctx context.Context, event shared.DomainEvent) error {
	var userID uuid.UUID
	switch e := event.(type) {
	case user.ProfileUpdatedEvent:
		userID = e.UserID
	case user.OnboardedEvent:
		userID = e.UserID
	default:
		return nil
	}
	return s.cache.DeletePattern(ctx, fmt.Sprintf("user:%s*", userID))
}

func (s *Service) load(ctx context.Context, repo outbound.UserRepository, id uuid.UUID) (*user.User, error) {
	u, err := repo.FindByID(ctx, id)
	if errors.Is(err, outbound.ErrNotFound) {
		return nil, apperrors.NewNotFound("user", id.String())
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func toProfile(in ProfileInput) user.Profile {
	return user.Profile{
		Age:                in.Age,
		Sex:                user.Sex(in.Sex),
		HeightCm:           in.HeightCm,
		WeightKg:           in.WeightKg,
		BodyFatPct:         in.BodyFatPct,
		ActivityLevel:      user.ActivityLevel(in.ActivityLevel),
		Goal:               user.Goal(in.Goal),
		TargetWeightKg:     in.TargetWeightKg,
		DietaryPreferences: in.DietaryPrefs,
		Allergies:          in.Allergies,
	}
}

func toUserDTO(u *user.User) UserDTO {
	return UserDTO{
		ID:        u.ID(),
		Email:     u.Email(),
		Timezone:  u.Timezone(),
		Language:  u.Language(),
		Onboarded: u.Profile() != nil,
		CreatedAt: u.CreatedAt(),
	}
}

func toProfileDTO(u *user.User) ProfileDTO {
	return ProfileDTO{
		Profile: *u.Profile(),
		Targets: u.Profile().Targets(),
	}
}
