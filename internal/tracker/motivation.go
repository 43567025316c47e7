package tracker

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
)

// Motivation pings fire only when the diary has been quiet for this long.
const (
	motivationQuietAfter = 18 * time.Hour
	motivationCooldown   = 6 * time.Hour
)

var motivationTexts = []string{
	"Давно не было записей в дневнике! Добавьте приём пищи, чтобы не сбиться с цели 💪",
	"Как проходит день? Запишите, что вы ели, и я помогу удержать баланс 🍽️",
	"Маленький шаг сегодня — большой результат завтра. Обновите дневник питания!",
}

// MaybeSendMotivation nudges inactive premium users through the bot. It is
// meant to run on a schedule; overlapping runs and recent pings are skipped.
func (t *Tracker) MaybeSendMotivation(ctx context.Context) {
	if t.bot == nil {
		return
	}
	user := t.User()
	if user.ID == 0 {
		return
	}

	if !t.motivating.CompareAndSwap(false, true) {
		return
	}
	defer t.motivating.Store(false)

	now := t.now()
	snapshot := t.store.Get()
	if snapshot.Subscription.Tier != model.TierPremium || !snapshot.Settings.NotificationsEnabled {
		return
	}
	if !snapshot.Settings.LastMotivationAt.IsZero() && now.Sub(snapshot.Settings.LastMotivationAt) < motivationCooldown {
		return
	}
	if len(snapshot.Diary.Entries) > 0 && now.Sub(snapshot.Diary.Entries[0].Timestamp) < motivationQuietAfter {
		return
	}

	text := motivationTexts[rand.Intn(len(motivationTexts))]
	if err := t.bot.SendMessage(ctx, user.ID, text); err != nil {
		t.log.Warn("failed to send motivation", zap.Error(err))
		return
	}
	t.store.Update(func(s model.AppState) model.AppState {
		s.Settings.LastMotivationAt = now
		return s
	})
}
