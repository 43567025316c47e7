// Package model defines the application state document and its leaf types.
package model

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

// Paid reports whether the tier bypasses free-tier usage ceilings.
func (t Tier) Paid() bool {
	return t == TierPro || t == TierPremium
}

type SubscriptionPeriod string

const (
	PeriodMonth SubscriptionPeriod = "month"
	PeriodYear  SubscriptionPeriod = "year"
)

// Page identifies a client screen for navigation side effects.
type Page string

const (
	PageCamera       Page = "camera"
	PageDiary        Page = "diary"
	PageCoach        Page = "coach"
	PageProfile      Page = "profile"
	PageSubscription Page = "subscription"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentSucceeded         PaymentStatus = "succeeded"
	PaymentWaitingForCapture PaymentStatus = "waiting_for_capture"
	PaymentCanceled          PaymentStatus = "canceled"
	PaymentFailed            PaymentStatus = "failed"
)

type DailyIntake struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// Profile holds anthropometric and goal data. DailyIntake is derived and
// recomputed on every profile update; the struct is always replaced wholesale.
type Profile struct {
	Name          string        `json:"name" validate:"required"`
	Age           int           `json:"age" validate:"required,gt=0"`
	WeightKg      float64       `json:"weightKg" validate:"required,gt=0"`
	HeightCm      float64       `json:"heightCm" validate:"required,gt=0"`
	Gender        Gender        `json:"gender" validate:"required,oneof=male female other"`
	ActivityLevel ActivityLevel `json:"activityLevel" validate:"required,oneof=sedentary light moderate active very_active"`
	GoalWeightKg  float64       `json:"goalWeightKg" validate:"required,gt=0"`
	Avatar        string        `json:"avatar,omitempty"`
	DailyIntake   DailyIntake   `json:"dailyIntake"`
}

// DiaryEntry is immutable once created.
type DiaryEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Food         string    `json:"food"`
	PortionGrams float64   `json:"portion_grams"`
	Calories     float64   `json:"calories"`
	Protein      float64   `json:"protein"`
	Fat          float64   `json:"fat"`
	Carbs        float64   `json:"carbs"`
	Tip          string    `json:"tip,omitempty"`
}

type WeightEntry struct {
	Timestamp time.Time `json:"timestamp"`
	WeightKg  float64   `json:"weightKg"`
}

type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type Diary struct {
	// Entries is ordered most-recent-first.
	Entries       []DiaryEntry  `json:"entries"`
	InitialWeight float64       `json:"initialWeight,omitempty"`
	WeightHistory []WeightEntry `json:"weightHistory"`
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type SubscriptionState struct {
	Tier             Tier               `json:"tier"`
	ScansToday       int                `json:"scansToday"`
	EntriesThisMonth int                `json:"entriesThisMonth"`
	LastScanDate     time.Time          `json:"lastScanDate,omitzero"`
	MonthStartDate   time.Time          `json:"monthStartDate,omitzero"`
	Status           SubscriptionStatus `json:"status,omitempty"`
	NextChargeAt     *time.Time         `json:"nextChargeAt,omitempty"`
}

type BillingState struct {
	// PendingPaymentID and PendingTier are either both empty or both set.
	PendingPaymentID  string             `json:"pendingPaymentId,omitempty"`
	PendingTier       Tier               `json:"pendingTier,omitempty"`
	PendingPeriod     SubscriptionPeriod `json:"pendingPeriod,omitempty"`
	LastPaymentID     string             `json:"lastPaymentId,omitempty"`
	LastPaymentStatus PaymentStatus      `json:"lastPaymentStatus,omitempty"`
	LastPaymentDate   time.Time          `json:"lastPaymentDate,omitzero"`
}

type Settings struct {
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	SupportName          string    `json:"supportName"`
	LastMotivationAt     time.Time `json:"lastMotivationAt,omitzero"`
	TermsAcceptedAt      time.Time `json:"termsAcceptedAt,omitzero"`
	TermsAcceptedVersion string    `json:"termsAcceptedVersion,omitempty"`
}

type AchievementState struct {
	// Unlocked is append-only; ids are never removed.
	Unlocked []string `json:"unlocked"`
}

// AppState is the aggregate root, persisted as one document under one key.
type AppState struct {
	Profile      Profile           `json:"profile"`
	Diary        Diary             `json:"diary"`
	Achievements AchievementState  `json:"achievements"`
	CoachHistory []ChatMessage     `json:"coachHistory"`
	Subscription SubscriptionState `json:"subscription"`
	Settings     Settings          `json:"settings"`
	Billing      BillingState      `json:"billing"`
}

// Clone returns a deep copy so callers can never mutate the stored snapshot.
func (s AppState) Clone() AppState {
	out := s
	out.Diary.Entries = append([]DiaryEntry(nil), s.Diary.Entries...)
	out.Diary.WeightHistory = append([]WeightEntry(nil), s.Diary.WeightHistory...)
	out.Achievements.Unlocked = append([]string(nil), s.Achievements.Unlocked...)
	out.CoachHistory = append([]ChatMessage(nil), s.CoachHistory...)
	if s.Subscription.NextChargeAt != nil {
		t := *s.Subscription.NextChargeAt
		out.Subscription.NextChargeAt = &t
	}
	return out
}

// HasUnlocked reports whether the achievement id is already in the unlocked set.
func (s AppState) HasUnlocked(id string) bool {
	for _, got := range s.Achievements.Unlocked {
		if got == id {
			return true
		}
	}
	return false
}

// AnalysisResult is the structured record returned by the image-analysis
// collaborator, staged until the user confirms it into the diary.
type AnalysisResult struct {
	Food         string  `json:"food"`
	PortionGrams float64 `json:"portion_grams"`
	Calories     float64 `json:"calories"`
	Protein      float64 `json:"protein"`
	Fat          float64 `json:"fat"`
	Carbs        float64 `json:"carbs"`
	Tip          string  `json:"tip"`
	Image        string  `json:"image,omitempty"`
}

// EntryInput carries user-provided fields for a new diary entry.
type EntryInput struct {
	Food         string  `json:"food" validate:"required"`
	PortionGrams float64 `json:"portion_grams" validate:"gte=0"`
	Calories     float64 `json:"calories" validate:"gte=0"`
	Protein      float64 `json:"protein" validate:"gte=0"`
	Fat          float64 `json:"fat" validate:"gte=0"`
	Carbs        float64 `json:"carbs" validate:"gte=0"`
	Tip          string  `json:"tip,omitempty"`
}
