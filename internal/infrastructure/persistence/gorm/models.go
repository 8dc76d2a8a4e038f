// Package gorm provides the GORM-backed persistence adapters and the
// transactional unit of work.
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/chat"
	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/user"
)

func jsonScan(dst any, src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into json column", src)
	}
}

// NutritionColumn stores the aggregate nutrition as a json document.
// NULL round-trips as a nil pointer for meals still in analysis.
type NutritionColumn struct {
	Nutrition *meal.Nutrition
}

func (c NutritionColumn) Value() (driver.Value, error) {
	if c.Nutrition == nil {
		return nil, nil
	}
	raw, err := json.Marshal(c.Nutrition)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (c *NutritionColumn) Scan(src any) error {
	if src == nil {
		c.Nutrition = nil
		return nil
	}
	c.Nutrition = &meal.Nutrition{}
	return jsonScan(c.Nutrition, src)
}

// FoodItemsColumn stores the meal's food items as a json array.
type FoodItemsColumn []meal.FoodItem

func (c FoodItemsColumn) Value() (driver.Value, error) {
	if c == nil {
		c = FoodItemsColumn{}
	}
	raw, err := json.Marshal([]meal.FoodItem(c))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (c *FoodItemsColumn) Scan(src any) error {
	*c = nil
	return jsonScan((*[]meal.FoodItem)(c), src)
}

// ProfileColumn stores the onboarding profile as a json document.
// Users created before onboarding carry NULL.
type ProfileColumn struct {
	Profile *user.Profile
}

func (c ProfileColumn) Value() (driver.Value, error) {
	if c.Profile == nil {
		return nil, nil
	}
	raw, err := json.Marshal(c.Profile)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (c *ProfileColumn) Scan(src any) error {
	if src == nil {
		c.Profile = nil
		return nil
	}
	c.Profile = &user.Profile{}
	return jsonScan(c.Profile, src)
}

// MessagesColumn stores the full message history of a thread as a json
// array. Threads are small by construction; the model window bounds what
// is ever sent upstream, not what is stored.
type MessagesColumn []chat.Message

func (c MessagesColumn) Value() (driver.Value, error) {
	if c == nil {
		c = MessagesColumn{}
	}
	raw, err := json.Marshal([]chat.Message(c))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (c *MessagesColumn) Scan(src any) error {
	*c = nil
	return jsonScan((*[]chat.Message)(c), src)
}

// MealModel is the persistence shape of the meal aggregate
type MealModel struct {
	ID           uuid.UUID       `gorm:"type:char(36);primaryKey"`
	UserID       uuid.UUID       `gorm:"type:char(36);not null;index:idx_meals_user_consumed,priority:1"`
	Status       string          `gorm:"type:varchar(16);not null;index"`
	MealType     string          `gorm:"type:varchar(16);not null"`
	DishName     string          `gorm:"type:varchar(255)"`
	ImageRef     string          `gorm:"type:text"`
	Strategy     string          `gorm:"type:varchar(32)"`
	Nutrition    NutritionColumn `gorm:"type:jsonb"`
	FoodItems    FoodItemsColumn `gorm:"type:jsonb"`
	ConsumedAt   time.Time       `gorm:"not null;index:idx_meals_user_consumed,priority:2"`
	ReadyAt      *time.Time
	ErrorMessage string `gorm:"type:text"`
	EditCount    int    `gorm:"not null;default:0"`
	LastEditedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the table name
func (MealModel) TableName() string { return "meals" }

// UserModel is the persistence shape of the user aggregate
type UserModel struct {
	ID        uuid.UUID     `gorm:"type:char(36);primaryKey"`
	Email     string        `gorm:"type:varchar(255);uniqueIndex;not null"`
	Timezone  string        `gorm:"type:varchar(64);not null"`
	Language  string        `gorm:"type:varchar(8);not null"`
	Profile   ProfileColumn `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name
func (UserModel) TableName() string { return "users" }

// NotificationPrefsModel is one row per user keyed by user id
type NotificationPrefsModel struct {
	UserID              uuid.UUID `gorm:"type:char(36);primaryKey"`
	Enabled             bool      `gorm:"not null;index"`
	MealsEnabled        bool      `gorm:"not null"`
	WaterEnabled        bool      `gorm:"not null"`
	SleepEnabled        bool      `gorm:"not null"`
	ProgressEnabled     bool      `gorm:"not null"`
	ReengagementEnabled bool      `gorm:"not null"`
	BreakfastMinute     int       `gorm:"not null"`
	LunchMinute         int       `gorm:"not null"`
	DinnerMinute        int       `gorm:"not null"`
	SleepMinute         int       `gorm:"not null"`
	WaterIntervalHours  int       `gorm:"not null"`
	Timezone            string    `gorm:"type:varchar(64);not null"`
	UpdatedAt           time.Time
}

// TableName overrides the table name
func (NotificationPrefsModel) TableName() string { return "notification_prefs" }

// FcmTokenModel is a registered push target keyed by the token string
type FcmTokenModel struct {
	Token      string    `gorm:"type:varchar(512);primaryKey"`
	UserID     uuid.UUID `gorm:"type:char(36);not null;index"`
	Platform   string    `gorm:"type:varchar(8);not null"`
	IsActive   bool      `gorm:"not null;index"`
	LastUsedAt time.Time
}

// TableName overrides the table name
func (FcmTokenModel) TableName() string { return "fcm_tokens" }

// ChatThreadModel is the persistence shape of a conversation thread
type ChatThreadModel struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey"`
	UserID    uuid.UUID      `gorm:"type:char(36);not null;index"`
	Status    string         `gorm:"type:varchar(16);not null"`
	Messages  MessagesColumn `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name
func (ChatThreadModel) TableName() string { return "chat_threads" }
