package model

import "time"

// TermsVersion is the current terms-of-service revision users must accept.
const TermsVersion = "1.2"

const coachGreeting = "Привет! Я ваш ИИ-коуч по питанию. Я могу помочь вам с планом питания, дать советы по достижению цели или ответить на вопросы о еде. Что вас интересует сегодня?"

// DefaultProfile mirrors the onboarding defaults shown before the first
// profile edit.
func DefaultProfile() Profile {
	return Profile{
		Name:          "Пользователь",
		Age:           30,
		WeightKg:      75,
		HeightCm:      180,
		Gender:        GenderMale,
		ActivityLevel: ActivityModerate,
		GoalWeightKg:  70,
		DailyIntake:   DailyIntake{Calories: 2200, Protein: 165, Fat: 73, Carbs: 220},
	}
}

// DefaultState builds the hard defaults that persisted data is merged over.
func DefaultState(now time.Time) AppState {
	profile := DefaultProfile()
	return AppState{
		Profile: profile,
		Diary: Diary{
			Entries:       []DiaryEntry{},
			InitialWeight: profile.WeightKg,
			WeightHistory: []WeightEntry{},
		},
		Achievements: AchievementState{Unlocked: []string{}},
		CoachHistory: []ChatMessage{{Role: RoleModel, Text: coachGreeting}},
		Subscription: SubscriptionState{
			Tier:           TierFree,
			MonthStartDate: now,
		},
		Settings: Settings{
			NotificationsEnabled: false,
			SupportName:          "Команда Fit AI",
		},
		Billing: BillingState{},
	}
}
