package state

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/filagate03/FIT-AAAAAI/internal/achievements"
	"github.com/filagate03/FIT-AAAAAI/internal/model"
)

type memStorage struct {
	blobs   map[string][]byte
	saveErr error
	saves   int
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: make(map[string][]byte)}
}

func (m *memStorage) Save(key string, blob []byte) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (m *memStorage) Load(key string) ([]byte, bool, error) {
	blob, ok := m.blobs[key]
	return blob, ok, nil
}

var storeNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, st *memStorage, onUnlock UnlockListener) *Store {
	t.Helper()
	return New(st, zap.NewNop(), func() time.Time { return storeNow }, onUnlock)
}

func TestUpdatePersistsEveryCommit(t *testing.T) {
	st := newMemStorage()
	s := newTestStore(t, st, nil)
	savesAfterInit := st.saves

	s.Update(func(app model.AppState) model.AppState {
		app.Settings.NotificationsEnabled = true
		return app
	})

	assert.Greater(t, st.saves, savesAfterInit)
	var persisted model.AppState
	require.NoError(t, json.Unmarshal(st.blobs[StorageKey], &persisted))
	assert.True(t, persisted.Settings.NotificationsEnabled)
}

func TestUpdateUnlocksAchievementsOnce(t *testing.T) {
	st := newMemStorage()
	var unlocked []string
	s := newTestStore(t, st, func(a achievements.Achievement) {
		unlocked = append(unlocked, a.ID)
	})

	addEntry := func(app model.AppState) model.AppState {
		app.Diary.Entries = append([]model.DiaryEntry{{
			ID: "e1", Timestamp: storeNow, Food: "Яблоко",
		}}, app.Diary.Entries...)
		return app
	}
	s.Update(addEntry)

	assert.Contains(t, unlocked, "first_scan")
	assert.Contains(t, unlocked, "healthy_choice")
	firstCount := len(unlocked)

	// a no-op commit must not unlock anything again
	s.Update(func(app model.AppState) model.AppState { return app })
	assert.Len(t, unlocked, firstCount)

	// the unlocked set in persisted state has no duplicates
	var persisted model.AppState
	require.NoError(t, json.Unmarshal(st.blobs[StorageKey], &persisted))
	seen := map[string]int{}
	for _, id := range persisted.Achievements.Unlocked {
		seen[id]++
		assert.Equal(t, 1, seen[id], "duplicate unlock %q", id)
	}
}

func TestUnlockedSetIsMonotonic(t *testing.T) {
	st := newMemStorage()
	s := newTestStore(t, st, nil)

	s.Update(func(app model.AppState) model.AppState {
		app.Diary.Entries = []model.DiaryEntry{{ID: "e1", Timestamp: storeNow, Food: "Суп"}}
		return app
	})
	require.Contains(t, s.Get().Achievements.Unlocked, "first_scan")

	// hypothetically removing every entry keeps the unlock
	s.Update(func(app model.AppState) model.AppState {
		app.Diary.Entries = nil
		return app
	})
	assert.Contains(t, s.Get().Achievements.Unlocked, "first_scan")
}

func TestPersistFailureKeepsInMemoryChange(t *testing.T) {
	st := newMemStorage()
	core, logs := observer.New(zapcore.ErrorLevel)
	s := New(st, zap.New(core), func() time.Time { return storeNow }, nil)

	st.saveErr = errors.New("disk full")
	s.Update(func(app model.AppState) model.AppState {
		app.Settings.SupportName = "Поддержка"
		return app
	})

	assert.Equal(t, "Поддержка", s.Get().Settings.SupportName)
	assert.NotZero(t, logs.FilterMessage("failed to persist state").Len())
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	s := newTestStore(t, newMemStorage(), nil)

	got := s.Get()
	got.Profile.Name = "Мутация"
	got.Diary.Entries = append(got.Diary.Entries, model.DiaryEntry{ID: "x"})

	fresh := s.Get()
	assert.Equal(t, model.DefaultProfile().Name, fresh.Profile.Name)
	assert.Empty(t, fresh.Diary.Entries)
}

func TestNewMergesPersistedDocument(t *testing.T) {
	st := newMemStorage()
	st.blobs[StorageKey] = []byte(`{"profile":{"name":"Олег"},"subscription":{"tier":"premium"}}`)

	s := newTestStore(t, st, nil)
	got := s.Get()
	assert.Equal(t, "Олег", got.Profile.Name)
	assert.Equal(t, model.TierPremium, got.Subscription.Tier)
	assert.Equal(t, model.DefaultProfile().HeightCm, got.Profile.HeightCm)
}
