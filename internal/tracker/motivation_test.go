package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
)

func premiumQuietFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.store.Update(func(s model.AppState) model.AppState {
		s.Subscription.Tier = model.TierPremium
		s.Settings.NotificationsEnabled = true
		s.Diary.Entries = []model.DiaryEntry{{
			ID:        "old",
			Food:      "Ужин",
			Timestamp: f.now.Add(-20 * time.Hour),
		}}
		return s
	})
	return f
}

func TestMotivationSent(t *testing.T) {
	f := premiumQuietFixture(t)

	f.tracker.MaybeSendMotivation(context.Background())

	f.bot.mu.Lock()
	defer f.bot.mu.Unlock()
	require.Len(t, f.bot.messages, 1)
	assert.Contains(t, motivationTexts, f.bot.messages[0])
	assert.True(t, f.store.Get().Settings.LastMotivationAt.Equal(f.now))
}

func TestMotivationCooldown(t *testing.T) {
	f := premiumQuietFixture(t)

	f.tracker.MaybeSendMotivation(context.Background())
	f.tracker.MaybeSendMotivation(context.Background())

	f.bot.mu.Lock()
	defer f.bot.mu.Unlock()
	assert.Len(t, f.bot.messages, 1)
}

func TestMotivationSkipsRecentEntry(t *testing.T) {
	f := premiumQuietFixture(t)
	f.store.Update(func(s model.AppState) model.AppState {
		s.Diary.Entries[0].Timestamp = f.now.Add(-2 * time.Hour)
		return s
	})

	f.tracker.MaybeSendMotivation(context.Background())

	f.bot.mu.Lock()
	defer f.bot.mu.Unlock()
	assert.Empty(t, f.bot.messages)
}

func TestMotivationRequiresPremiumAndOptIn(t *testing.T) {
	f := newFixture(t)
	f.store.Update(func(s model.AppState) model.AppState {
		s.Subscription.Tier = model.TierPro
		s.Settings.NotificationsEnabled = true
		return s
	})

	f.tracker.MaybeSendMotivation(context.Background())

	f.store.Update(func(s model.AppState) model.AppState {
		s.Subscription.Tier = model.TierPremium
		s.Settings.NotificationsEnabled = false
		return s
	})
	f.tracker.MaybeSendMotivation(context.Background())

	f.bot.mu.Lock()
	defer f.bot.mu.Unlock()
	assert.Empty(t, f.bot.messages)
}

func TestMotivationSentAfterCooldownExpires(t *testing.T) {
	f := premiumQuietFixture(t)

	f.tracker.MaybeSendMotivation(context.Background())
	f.setClock(f.now.Add(7 * time.Hour))
	f.tracker.MaybeSendMotivation(context.Background())

	f.bot.mu.Lock()
	defer f.bot.mu.Unlock()
	assert.Len(t, f.bot.messages, 2)
}
