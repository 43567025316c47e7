// Package tracker dispatches user actions against the application state:
// diary writes, profile updates, AI analysis, coaching, billing and usage
// accounting. Every action validates, applies a state transition through the
// store and emits UI side effects through the Events sink.
package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
	"github.com/filagate03/FIT-AAAAAI/internal/nutrition"
	"github.com/filagate03/FIT-AAAAAI/internal/payments"
	"github.com/filagate03/FIT-AAAAAI/internal/state"
	"github.com/filagate03/FIT-AAAAAI/internal/subs"
	"github.com/filagate03/FIT-AAAAAI/internal/telegram"
)

// Free-tier usage ceilings.
const (
	FreeScansPerDay     = 3
	FreeEntriesPerMonth = 100
)

// Water preset added by the one-tap action.
const (
	waterFood         = "Вода"
	waterPortionGrams = 250
	waterTip          = "Отличная работа! Поддержание гидратации ускоряет прогресс."
)

var (
	ErrScanLimitReached  = errors.New("tracker: daily scan limit reached")
	ErrEntryLimitReached = errors.New("tracker: monthly entry limit reached")
	ErrNoPendingAnalysis = errors.New("tracker: no staged analysis to confirm")
	ErrNoPendingPayment  = errors.New("tracker: no payment awaiting confirmation")
	ErrPaymentPending    = errors.New("tracker: a payment is already awaiting confirmation")
	ErrPremiumRequired   = errors.New("tracker: premium subscription required")
	ErrNoSubscription    = errors.New("tracker: no active subscription to cancel")
)

// Analyzer produces structured food analyses and coach replies.
type Analyzer interface {
	AnalyzeFood(ctx context.Context, imageBase64 string, profile model.Profile) (model.AnalysisResult, error)
	CoachReply(ctx context.Context, history []model.ChatMessage, profile model.Profile, entries []model.DiaryEntry, tier model.Tier) (string, error)
}

// Gateway talks to the payment provider.
type Gateway interface {
	Create(ctx context.Context, tier model.Tier, period model.SubscriptionPeriod, returnURL string, meta payments.Metadata) (payments.Session, error)
	Status(ctx context.Context, paymentID string) (model.PaymentStatus, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// Notifier delivers bot messages. May be nil when the bot is not configured.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	NotifyPaymentSuccess(ctx context.Context, chatID int64, tier model.Tier, name string) error
}

// Events receives UI side effects decoupled from state transitions.
type Events interface {
	Toast(text string)
	Navigate(page model.Page)
}

// Limits caps history growth; zero means unbounded.
type Limits struct {
	CoachHistory int
	DiaryEntries int
}

type Tracker struct {
	log      *zap.Logger
	store    *state.Store
	ai       Analyzer
	gateway  Gateway
	bot      Notifier
	subs     subs.Store
	events   Events
	validate *validator.Validate
	now      func() time.Time
	limits   Limits

	returnURL string

	mu         sync.Mutex
	user       telegram.User
	pending    *model.AnalysisResult
	refreshing bool
	cancelling atomic.Bool
	motivating atomic.Bool
}

type Options struct {
	Store     *state.Store
	AI        Analyzer
	Gateway   Gateway
	Bot       Notifier
	Subs      subs.Store
	Events    Events
	Logger    *zap.Logger
	Now       func() time.Time
	Limits    Limits
	ReturnURL string
}

func New(opts Options) *Tracker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	events := opts.Events
	if events == nil {
		events = noopEvents{}
	}
	return &Tracker{
		log:       opts.Logger,
		store:     opts.Store,
		ai:        opts.AI,
		gateway:   opts.Gateway,
		bot:       opts.Bot,
		subs:      opts.Subs,
		events:    events,
		validate:  validator.New(),
		now:       now,
		limits:    opts.Limits,
		returnURL: opts.ReturnURL,
	}
}

type noopEvents struct{}

func (noopEvents) Toast(string)        {}
func (noopEvents) Navigate(model.Page) {}

// SetUser attaches the authenticated mini-app user for notifications and
// payment metadata.
func (t *Tracker) SetUser(u telegram.User) {
	t.mu.Lock()
	t.user = u
	t.mu.Unlock()
}

// User returns the currently attached mini-app user, zero if anonymous.
func (t *Tracker) User() telegram.User {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.user
}

// State returns the current snapshot.
func (t *Tracker) State() model.AppState {
	return t.store.Get()
}

// CheckAndResetUsage zeroes the daily scan counter when the calendar day has
// rolled over and the monthly entry counter when the month has. Counters reset
// on boundary crossings, never on elapsed duration.
func (t *Tracker) CheckAndResetUsage() {
	now := t.now()
	t.store.Update(func(s model.AppState) model.AppState {
		return resetUsage(s, now)
	})
}

func resetUsage(s model.AppState, now time.Time) model.AppState {
	if !sameDay(s.Subscription.LastScanDate, now) {
		s.Subscription.ScansToday = 0
		s.Subscription.LastScanDate = now
	}
	if !sameMonth(s.Subscription.MonthStartDate, now) {
		s.Subscription.EntriesThisMonth = 0
		s.Subscription.MonthStartDate = now
	}
	return s
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}

// RequestImageAnalysis runs the scan entitlement gate, charges one scan and
// forwards the image to the analyzer. The scan is charged for the attempt:
// an analyzer failure does not refund it. The result is staged until the
// user confirms it into the diary.
func (t *Tracker) RequestImageAnalysis(ctx context.Context, imageBase64 string) (model.AnalysisResult, error) {
	t.CheckAndResetUsage()

	var blocked error
	t.store.Update(func(s model.AppState) model.AppState {
		if !s.Subscription.Tier.Paid() {
			switch {
			case s.Subscription.ScansToday >= FreeScansPerDay:
				blocked = ErrScanLimitReached
				return s
			case s.Subscription.EntriesThisMonth >= FreeEntriesPerMonth:
				blocked = ErrEntryLimitReached
				return s
			}
		}
		s.Subscription.ScansToday++
		s.Subscription.LastScanDate = t.now()
		return s
	})
	switch blocked {
	case ErrScanLimitReached:
		t.events.Toast("Лимит сканирований на сегодня исчерпан. Оформите подписку, чтобы сканировать без ограничений.")
	case ErrEntryLimitReached:
		t.events.Toast("Достигнут месячный лимит записей. Оформите подписку, чтобы вести дневник без ограничений.")
	}
	if blocked != nil {
		t.events.Navigate(model.PageSubscription)
		return model.AnalysisResult{}, blocked
	}

	result, err := t.ai.AnalyzeFood(ctx, imageBase64, t.store.Get().Profile)
	if err != nil {
		t.log.Error("image analysis failed", zap.Error(err))
		return model.AnalysisResult{}, err
	}

	t.mu.Lock()
	t.pending = &result
	t.mu.Unlock()
	return result, nil
}

// PendingAnalysis returns the staged result, if any.
func (t *Tracker) PendingAnalysis() (model.AnalysisResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return model.AnalysisResult{}, false
	}
	return *t.pending, true
}

// DiscardAnalysis drops the staged result without touching the diary.
func (t *Tracker) DiscardAnalysis() {
	t.mu.Lock()
	t.pending = nil
	t.mu.Unlock()
}

// ConfirmAnalysis commits the staged analysis as a diary entry.
func (t *Tracker) ConfirmAnalysis() (model.DiaryEntry, error) {
	t.mu.Lock()
	pending := t.pending
	t.mu.Unlock()
	if pending == nil {
		return model.DiaryEntry{}, ErrNoPendingAnalysis
	}

	entry, err := t.addEntry(model.EntryInput{
		Food:         pending.Food,
		PortionGrams: pending.PortionGrams,
		Calories:     pending.Calories,
		Protein:      pending.Protein,
		Fat:          pending.Fat,
		Carbs:        pending.Carbs,
		Tip:          pending.Tip,
	})
	if err != nil {
		return model.DiaryEntry{}, err
	}

	t.mu.Lock()
	t.pending = nil
	t.mu.Unlock()
	return entry, nil
}

// AddManualEntry validates and commits a hand-entered diary entry.
func (t *Tracker) AddManualEntry(input model.EntryInput) (model.DiaryEntry, error) {
	if err := t.validate.Struct(input); err != nil {
		return model.DiaryEntry{}, err
	}
	return t.addEntry(input)
}

// AddWaterEntry records the fixed water preset.
func (t *Tracker) AddWaterEntry() (model.DiaryEntry, error) {
	return t.addEntry(model.EntryInput{
		Food:         waterFood,
		PortionGrams: waterPortionGrams,
		Tip:          waterTip,
	})
}

// addEntry prepends the new entry and bumps the monthly counter. Entries are
// immutable once committed; the counter only gates scans, never adds.
func (t *Tracker) addEntry(input model.EntryInput) (model.DiaryEntry, error) {
	t.CheckAndResetUsage()

	entry := model.DiaryEntry{
		ID:           uuid.NewString(),
		Timestamp:    t.now(),
		Food:         input.Food,
		PortionGrams: input.PortionGrams,
		Calories:     input.Calories,
		Protein:      input.Protein,
		Fat:          input.Fat,
		Carbs:        input.Carbs,
		Tip:          input.Tip,
	}

	t.store.Update(func(s model.AppState) model.AppState {
		s.Diary.Entries = append([]model.DiaryEntry{entry}, s.Diary.Entries...)
		if t.limits.DiaryEntries > 0 && len(s.Diary.Entries) > t.limits.DiaryEntries {
			s.Diary.Entries = s.Diary.Entries[:t.limits.DiaryEntries]
		}
		s.Subscription.EntriesThisMonth++
		return s
	})
	t.events.Toast("Запись добавлена в дневник")
	t.events.Navigate(model.PageDiary)
	return entry, nil
}

// UpdateProfile validates the new profile, recomputes the daily intake and
// maintains weight history. The first recorded weight backfills the diary's
// initial weight; a new weight is appended only when it actually changed.
func (t *Tracker) UpdateProfile(ctx context.Context, p model.Profile) error {
	if err := t.validate.Struct(p); err != nil {
		return err
	}

	p.DailyIntake = nutrition.IntakeFor(p)
	now := t.now()
	t.store.Update(func(s model.AppState) model.AppState {
		s.Profile = p
		if s.Diary.InitialWeight == 0 {
			s.Diary.InitialWeight = p.WeightKg
		}
		history := s.Diary.WeightHistory
		if len(history) == 0 || history[len(history)-1].WeightKg != p.WeightKg {
			s.Diary.WeightHistory = append(history, model.WeightEntry{Timestamp: now, WeightKg: p.WeightKg})
		}
		return s
	})

	t.syncSubscriptionRecord(ctx)
	return nil
}

// SendCoachMessage appends the user's message synchronously, then asks the
// analyzer for a reply in the background. A failed reply still appends a
// fixed apology so the conversation never strands the user message.
func (t *Tracker) SendCoachMessage(ctx context.Context, text string) error {
	req := struct {
		Text string `validate:"required"`
	}{Text: text}
	if err := t.validate.Struct(req); err != nil {
		return err
	}

	t.store.Update(func(s model.AppState) model.AppState {
		s.CoachHistory = append(s.CoachHistory, model.ChatMessage{Role: model.RoleUser, Text: text})
		return s
	})

	replyCtx := context.WithoutCancel(ctx)
	go func() {
		snapshot := t.store.Get()
		reply, err := t.ai.CoachReply(replyCtx, snapshot.CoachHistory, snapshot.Profile, snapshot.Diary.Entries, snapshot.Subscription.Tier)
		if err != nil {
			t.log.Error("coach reply failed", zap.Error(err))
			reply = "Извините, сейчас не получается ответить. Попробуйте ещё раз чуть позже."
		}
		t.store.Update(func(s model.AppState) model.AppState {
			s.CoachHistory = append(s.CoachHistory, model.ChatMessage{Role: model.RoleModel, Text: reply})
			if t.limits.CoachHistory > 0 && len(s.CoachHistory) > t.limits.CoachHistory {
				s.CoachHistory = s.CoachHistory[len(s.CoachHistory)-t.limits.CoachHistory:]
			}
			return s
		})
	}()
	return nil
}

// ToggleNotifications flips bot reminders. Reminders are a premium perk;
// anyone else only sees an informational message.
func (t *Tracker) ToggleNotifications() error {
	if t.store.Get().Subscription.Tier != model.TierPremium {
		t.events.Toast("Напоминания доступны на тарифе PREMIUM.")
		return ErrPremiumRequired
	}
	t.store.Update(func(s model.AppState) model.AppState {
		s.Settings.NotificationsEnabled = !s.Settings.NotificationsEnabled
		return s
	})
	return nil
}

// AcceptTerms records acceptance of the current terms version. Calling it
// again for an already accepted version keeps the original timestamp.
func (t *Tracker) AcceptTerms() {
	now := t.now()
	t.store.Update(func(s model.AppState) model.AppState {
		if s.Settings.TermsAcceptedVersion == model.TermsVersion {
			return s
		}
		s.Settings.TermsAcceptedAt = now
		s.Settings.TermsAcceptedVersion = model.TermsVersion
		return s
	})
}

// UpdateSupportName stores the display name used when contacting support.
func (t *Tracker) UpdateSupportName(name string) {
	t.store.Update(func(s model.AppState) model.AppState {
		s.Settings.SupportName = name
		return s
	})
}
