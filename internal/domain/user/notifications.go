package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Notification preference errors
var (
	ErrInvalidReminderMinute = errors.New("reminder minute must be in [0,1439]")
	ErrInvalidWaterInterval  = errors.New("water interval must be at least 1 hour")
	ErrInvalidTimezone       = errors.New("timezone must be a valid IANA zone")
)

// NotificationCategory names a reminder stream
type NotificationCategory string

const (
	CategoryBreakfast    NotificationCategory = "breakfast"
	CategoryLunch        NotificationCategory = "lunch"
	CategoryDinner       NotificationCategory = "dinner"
	CategoryWater        NotificationCategory = "water"
	CategorySleep        NotificationCategory = "sleep"
	CategoryProgress     NotificationCategory = "progress"
	CategoryReengagement NotificationCategory = "re_engagement"
)

// NotificationPrefs stores a user's reminder configuration. Meal and
// sleep times are minutes-from-midnight in the user's local timezone.
type NotificationPrefs struct {
	UserID              uuid.UUID
	Enabled             bool
	MealsEnabled        bool
	WaterEnabled        bool
	SleepEnabled        bool
	ProgressEnabled     bool
	ReengagementEnabled bool
	BreakfastMinute     int
	LunchMinute         int
	DinnerMinute        int
	SleepMinute         int
	WaterIntervalHours  int
	Timezone            string
}

// Validate checks ranges and resolves the IANA timezone
func (p NotificationPrefs) Validate() error {
	for _, minute := range []int{p.BreakfastMinute, p.LunchMinute, p.DinnerMinute, p.SleepMinute} {
		if minute < 0 || minute > 1439 {
			return ErrInvalidReminderMinute
		}
	}
	if p.WaterEnabled && p.WaterIntervalHours < 1 {
		return ErrInvalidWaterInterval
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return ErrInvalidTimezone
	}
	return nil
}

// CategoryEnabled reports whether a category may fire, honoring the
// master toggle first.
func (p NotificationPrefs) CategoryEnabled(category NotificationCategory) bool {
	if !p.Enabled {
		return false
	}
	switch category {
	case CategoryBreakfast, CategoryLunch, CategoryDinner:
		return p.MealsEnabled
	case CategoryWater:
		return p.WaterEnabled
	case CategorySleep:
		return p.SleepEnabled
	case CategoryProgress:
		return p.ProgressEnabled
	case CategoryReengagement:
		return p.ReengagementEnabled
	default:
		return false
	}
}

// MinuteFor returns the configured local minute for a scheduled category
// and whether that category is minute-scheduled at all.
func (p NotificationPrefs) MinuteFor(category NotificationCategory) (int, bool) {
	switch category {
	case CategoryBreakfast:
		return p.BreakfastMinute, true
	case CategoryLunch:
		return p.LunchMinute, true
	case CategoryDinner:
		return p.DinnerMinute, true
	case CategorySleep:
		return p.SleepMinute, true
	default:
		return 0, false
	}
}

// Platform identifies the device OS of a push token
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// FcmToken is a registered push delivery target
type FcmToken struct {
	Token      string
	UserID     uuid.UUID
	Platform   Platform
	IsActive   bool
	LastUsedAt time.Time
}
