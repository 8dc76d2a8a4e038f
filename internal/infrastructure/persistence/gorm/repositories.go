package gorm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutrisnap/v2/internal/domain/chat"
	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/user"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// MealRepository implements outbound.MealRepository on GORM.
type MealRepository struct {
	db *gorm.DB
}

// NewMealRepository creates the repository on the given handle, which may
// be the shared pool or a transaction.
func NewMealRepository(db *gorm.DB) *MealRepository {
	return &MealRepository{db: db}
}

func (r *MealRepository) Create(ctx context.Context, m *meal.Meal) error {
	model := mealToModel(m)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *MealRepository) Update(ctx context.Context, m *meal.Meal) error {
	model := mealToModel(m)
	result := r.db.WithContext(ctx).Save(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return outbound.ErrNotFound
	}
	return nil
}

// UpdateIfStatus is the optimistic guard of the analysis pipeline: the
// row is rewritten only while it still holds the expected status, so a
// stale worker loses silently instead of clobbering a later state.
func (r *MealRepository) UpdateIfStatus(ctx context.Context, m *meal.Meal, expected meal.Status) (bool, error) {
	model := mealToModel(m)
	result := r.db.WithContext(ctx).Model(&MealModel{}).
		Where("id = ? AND status = ?", model.ID, string(expected)).
		Updates(map[string]any{
			"status":         model.Status,
			"meal_type":      model.MealType,
			"dish_name":      model.DishName,
			"image_ref":      model.ImageRef,
			"strategy":       model.Strategy,
			"nutrition":      model.Nutrition,
			"food_items":     model.FoodItems,
			"consumed_at":    model.ConsumedAt,
			"ready_at":       model.ReadyAt,
			"error_message":  model.ErrorMessage,
			"edit_count":     model.EditCount,
			"last_edited_at": model.LastEditedAt,
			"updated_at":     model.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *MealRepository) FindByID(ctx context.Context, id uuid.UUID) (*meal.Meal, error) {
	var model MealModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, outbound.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return mealFromModel(model), nil
}

func (r *MealRepository) FindByUserAndRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*meal.Meal, error) {
	var models []MealModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ? AND consumed_at >= ? AND consumed_at < ?",
			userID, string(meal.StatusInactive), from, to).
		Order("consumed_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	meals := make([]*meal.Meal, 0, len(models))
	for _, model := range models {
		meals = append(meals, mealFromModel(model))
	}
	return meals, nil
}

// UserRepository implements outbound.UserRepository on GORM.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates the repository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	model := userToModel(u)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	model := userToModel(u)
	result := r.db.WithContext(ctx).Save(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return outbound.ErrNotFound
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, outbound.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userFromModel(model), nil
}

// NotificationRepository implements outbound.NotificationRepository on GORM.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates the repository.
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) FindPrefs(ctx context.Context, userID uuid.UUID) (*user.NotificationPrefs, error) {
	var model NotificationPrefsModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, outbound.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	prefs := prefsFromModel(model)
	return &prefs, nil
}

func (r *NotificationRepository) SavePrefs(ctx context.Context, prefs user.NotificationPrefs) error {
	model := prefsToModel(prefs)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

func (r *NotificationRepository) ListEnabledPrefs(ctx context.Context) ([]user.NotificationPrefs, error) {
	var models []NotificationPrefsModel
	err := r.db.WithContext(ctx).Where("enabled = ?", true).Find(&models).Error
	if err != nil {
		return nil, err
	}
	prefs := make([]user.NotificationPrefs, 0, len(models))
	for _, model := range models {
		prefs = append(prefs, prefsFromModel(model))
	}
	return prefs, nil
}

// RegisterToken upserts on the token string: re-registering a token moves
// it to the current user and reactivates it.
func (r *NotificationRepository) RegisterToken(ctx context.Context, token user.FcmToken) error {
	model := tokenToModel(token)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "is_active", "last_used_at"}),
		}).
		Create(&model).Error
}

func (r *NotificationRepository) ActiveTokens(ctx context.Context, userID uuid.UUID) ([]user.FcmToken, error) {
	var models []FcmTokenModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	tokens := make([]user.FcmToken, 0, len(models))
	for _, model := range models {
		tokens = append(tokens, tokenFromModel(model))
	}
	return tokens, nil
}

func (r *NotificationRepository) DeactivateToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Model(&FcmTokenModel{}).
		Where("token = ?", token).
		Update("is_active", false).Error
}

// ChatThreadRepository implements outbound.ChatThreadRepository on GORM.
type ChatThreadRepository struct {
	db *gorm.DB
}

// NewChatThreadRepository creates the repository.
func NewChatThreadRepository(db *gorm.DB) *ChatThreadRepository {
	return &ChatThreadRepository{db: db}
}

func (r *ChatThreadRepository) Create(ctx context.Context, t *chat.Thread) error {
	model := threadToModel(t)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ChatThreadRepository) Update(ctx context.Context, t *chat.Thread) error {
	model := threadToModel(t)
	result := r.db.WithContext(ctx).Save(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return outbound.ErrNotFound
	}
	return nil
}

func (r *ChatThreadRepository) FindByID(ctx context.Context, id uuid.UUID) (*chat.Thread, error) {
	var model ChatThreadModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, outbound.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return threadFromModel(model), nil
}

func (r *ChatThreadRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*chat.Thread, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []ChatThreadModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	threads := make([]*chat.Thread, 0, len(models))
	for _, model := range models {
		threads = append(threads, threadFromModel(model))
	}
	return threads, nil
}
