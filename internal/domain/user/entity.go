// Package user contains the identity and physiology side of the domain:
// the user aggregate, its profile, notification preferences and device
// push tokens.
package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/shared"
)

// Sex is the biological sex used for energy expenditure estimates
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ActivityLevel scales basal metabolic rate into daily expenditure
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// Factor returns the TDEE multiplier for the activity level
func (a ActivityLevel) Factor() float64 {
	switch a {
	case ActivitySedentary:
		return 1.2
	case ActivityLight:
		return 1.375
	case ActivityModerate:
		return 1.55
	case ActivityActive:
		return 1.725
	case ActivityVeryActive:
		return 1.9
	default:
		return 1.2
	}
}

// Goal is the user's body composition goal
type Goal string

const (
	GoalCut    Goal = "CUT"
	GoalBulk   Goal = "BULK"
	GoalRecomp Goal = "RECOMP"
)

// CalorieAdjustment returns the daily kcal offset applied on top of TDEE
func (g Goal) CalorieAdjustment() float64 {
	switch g {
	case GoalCut:
		return -500
	case GoalBulk:
		return 300
	default:
		return 0
	}
}

// MacroSplit returns the protein/carb/fat calorie shares for the goal
func (g Goal) MacroSplit() (protein, carbs, fat float64) {
	if g == GoalBulk {
		return 0.30, 0.45, 0.25
	}
	return 0.35, 0.40, 0.25
}

// Profile holds the physiology used for TDEE and prompt construction
type Profile struct {
	Age                int
	Sex                Sex
	HeightCm           float64
	WeightKg           float64
	BodyFatPct         *float64
	ActivityLevel      ActivityLevel
	Goal               Goal
	TargetWeightKg     *float64
	DietaryPreferences []string
	Allergies          []string
}

// BMR estimates basal metabolic rate with Mifflin-St Jeor
func (p Profile) BMR() float64 {
	base := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	if p.Sex == SexFemale {
		return base - 161
	}
	return base + 5
}

// Tdee is total daily energy expenditure
func (p Profile) Tdee() float64 {
	return p.BMR() * p.ActivityLevel.Factor()
}

// MacroTargets are the daily macro goals in grams plus target calories
type MacroTargets struct {
	Calories float64
	ProteinG float64
	CarbsG   float64
	FatG     float64
}

// Targets derives the daily calorie and macro goals from the profile.
// Protein and carbs count 4 kcal/g, fat 9 kcal/g.
func (p Profile) Targets() MacroTargets {
	calories := p.Tdee() + p.Goal.CalorieAdjustment()
	proteinShare, carbShare, fatShare := p.Goal.MacroSplit()
	return MacroTargets{
		Calories: calories,
		ProteinG: calories * proteinShare / 4,
		CarbsG:   calories * carbShare / 4,
		FatG:     calories * fatShare / 9,
	}
}

// User is the aggregate root owning profile, preferences, meals and
// device tokens. Cross-aggregate references are by id only.
type User struct {
	shared.AggregateRoot

	id        uuid.UUID
	email     string
	timezone  string
	language  string
	profile   *Profile
	createdAt time.Time
	updatedAt time.Time
}

// New creates a user with identity only; onboarding fills the profile
func New(id uuid.UUID, email, timezone, language string) *User {
	now := time.Now().UTC()
	u := &User{
		id:        id,
		email:     email,
		timezone:  timezone,
		language:  language,
		createdAt: now,
		updatedAt: now,
	}
	return u
}

// Rehydrate reconstructs a user from persisted state
func Rehydrate(id uuid.UUID, email, timezone, language string, profile *Profile, createdAt, updatedAt time.Time) *User {
	return &User{
		id:        id,
		email:     email,
		timezone:  timezone,
		language:  language,
		profile:   profile,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (u *User) ID() uuid.UUID        { return u.id }
func (u *User) Email() string        { return u.email }
func (u *User) Timezone() string     { return u.timezone }
func (u *User) Language() string     { return u.language }
func (u *User) Profile() *Profile    { return u.profile }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// CompleteOnboarding attaches the initial profile and raises OnboardedEvent
func (u *User) CompleteOnboarding(profile Profile) {
	u.profile = &profile
	u.updatedAt = time.Now().UTC()
	u.AddEvent(OnboardedEvent{UserID: u.id, At: u.updatedAt})
}

// UpdateProfile replaces the profile and raises ProfileUpdatedEvent so
// the cache invalidation subscriber can evict user:* keys
func (u *User) UpdateProfile(profile Profile) {
	u.profile = &profile
	u.updatedAt = time.Now().UTC()
	u.AddEvent(ProfileUpdatedEvent{UserID: u.id, At: u.updatedAt})
}
