package testutils

import (
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/user"
)

// NewUser builds a persisted-looking user with a randomized identity
// and a sensible default profile.
func NewUser(opts ...func(*user.Profile)) *user.User {
	u := user.New(uuid.New(), gofakeit.Email(), "America/New_York", "en")
	profile := DefaultProfile()
	for _, opt := range opts {
		opt(&profile)
	}
	u.CompleteOnboarding(profile)
	u.ClearEvents()
	return u
}

// DefaultProfile returns a moderate-activity recomp profile.
func DefaultProfile() user.Profile {
	return user.Profile{
		Age:           30,
		Sex:           user.SexMale,
		HeightCm:      178,
		WeightKg:      75,
		ActivityLevel: user.ActivityModerate,
		Goal:          user.GoalRecomp,
	}
}

// WithDietaryPreferences constrains the profile's hard dietary tags.
func WithDietaryPreferences(prefs ...string) func(*user.Profile) {
	return func(p *user.Profile) { p.DietaryPreferences = prefs }
}

// WithAllergies sets the profile's allergy list.
func WithAllergies(allergies ...string) func(*user.Profile) {
	return func(p *user.Profile) { p.Allergies = allergies }
}
