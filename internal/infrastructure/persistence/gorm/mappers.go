package gorm

import (
	"github.com/nutrisnap/v2/internal/domain/chat"
	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/user"
)

func mealToModel(m *meal.Meal) MealModel {
	return MealModel{
		ID:           m.ID(),
		UserID:       m.UserID(),
		Status:       string(m.Status()),
		MealType:     string(m.Type()),
		DishName:     m.DishName(),
		ImageRef:     m.ImageRef(),
		Strategy:     m.Strategy(),
		Nutrition:    NutritionColumn{Nutrition: m.Nutrition()},
		FoodItems:    FoodItemsColumn(m.FoodItems()),
		ConsumedAt:   m.ConsumedAt(),
		ReadyAt:      m.ReadyAt(),
		ErrorMessage: m.ErrorMessage(),
		EditCount:    m.EditCount(),
		LastEditedAt: m.LastEditedAt(),
		CreatedAt:    m.CreatedAt(),
		UpdatedAt:    m.UpdatedAt(),
	}
}

func mealFromModel(model MealModel) *meal.Meal {
	return meal.Rehydrate(
		model.ID,
		model.UserID,
		meal.Status(model.Status),
		meal.MealType(model.MealType),
		model.DishName,
		model.ImageRef,
		model.Strategy,
		model.Nutrition.Nutrition,
		[]meal.FoodItem(model.FoodItems),
		model.ConsumedAt,
		model.ReadyAt,
		model.ErrorMessage,
		model.EditCount,
		model.LastEditedAt,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func userToModel(u *user.User) UserModel {
	return UserModel{
		ID:        u.ID(),
		Email:     u.Email(),
		Timezone:  u.Timezone(),
		Language:  u.Language(),
		Profile:   ProfileColumn{Profile: u.Profile()},
		CreatedAt: u.CreatedAt(),
		UpdatedAt: u.UpdatedAt(),
	}
}

func userFromModel(model UserModel) *user.User {
	return user.Rehydrate(
		model.ID,
		model.Email,
		model.Timezone,
		model.Language,
		model.Profile.Profile,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func prefsToModel(p user.NotificationPrefs) NotificationPrefsModel {
	return NotificationPrefsModel{
		UserID:              p.UserID,
		Enabled:             p.Enabled,
		MealsEnabled:        p.MealsEnabled,
		WaterEnabled:        p.WaterEnabled,
		SleepEnabled:        p.SleepEnabled,
		ProgressEnabled:     p.ProgressEnabled,
		ReengagementEnabled: p.ReengagementEnabled,
		BreakfastMinute:     p.BreakfastMinute,
		LunchMinute:         p.LunchMinute,
		DinnerMinute:        p.DinnerMinute,
		SleepMinute:         p.SleepMinute,
		WaterIntervalHours:  p.WaterIntervalHours,
		Timezone:            p.Timezone,
	}
}

func prefsFromModel(model NotificationPrefsModel) user.NotificationPrefs {
	return user.NotificationPrefs{
		UserID:              model.UserID,
		Enabled:             model.Enabled,
		MealsEnabled:        model.MealsEnabled,
		WaterEnabled:        model.WaterEnabled,
		SleepEnabled:        model.SleepEnabled,
		ProgressEnabled:     model.ProgressEnabled,
		ReengagementEnabled: model.ReengagementEnabled,
		BreakfastMinute:     model.BreakfastMinute,
		LunchMinute:         model.LunchMinute,
		DinnerMinute:        model.DinnerMinute,
		SleepMinute:         model.SleepMinute,
		WaterIntervalHours:  model.WaterIntervalHours,
		Timezone:            model.Timezone,
	}
}

func tokenToModel(t user.FcmToken) FcmTokenModel {
	return FcmTokenModel{
		Token:      t.Token,
		UserID:     t.UserID,
		Platform:   string(t.Platform),
		IsActive:   t.IsActive,
		LastUsedAt: t.LastUsedAt,
	}
}

func tokenFromModel(model FcmTokenModel) user.FcmToken {
	return user.FcmToken{
		Token:      model.Token,
		UserID:     model.UserID,
		Platform:   user.Platform(model.Platform),
		IsActive:   model.IsActive,
		LastUsedAt: model.LastUsedAt,
	}
}

func threadToModel(t *chat.Thread) ChatThreadModel {
	return ChatThreadModel{
		ID:        t.ID(),
		UserID:    t.UserID(),
		Status:    string(t.Status()),
		Messages:  MessagesColumn(t.Messages()),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}
}

func threadFromModel(model ChatThreadModel) *chat.Thread {
	return chat.Rehydrate(
		model.ID,
		model.UserID,
		chat.ThreadStatus(model.Status),
		[]chat.Message(model.Messages),
		model.CreatedAt,
		model.UpdatedAt,
	)
}
