// Package state owns the canonical AppState snapshot. All mutations flow
// through Store.Update; every commit is persisted and re-evaluated for newly
// unlocked achievements.
package state

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/filagate03/FIT-AAAAAI/internal/achievements"
	"github.com/filagate03/FIT-AAAAAI/internal/model"
	"github.com/filagate03/FIT-AAAAAI/internal/storage"
)

// StorageKey is the single document key the whole state lives under.
const StorageKey = "fit-ai-app-state"

// UnlockListener receives each newly unlocked achievement, after the commit
// that unlocked it has been persisted.
type UnlockListener func(achievements.Achievement)

type Store struct {
	log      *zap.Logger
	storage  storage.Storage
	now      func() time.Time
	onUnlock UnlockListener

	mu    sync.Mutex
	state model.AppState
}

// New loads the persisted document (if any), merges it over defaults and runs
// the startup achievement pass. A corrupt or unreadable document is logged and
// replaced by defaults.
func New(st storage.Storage, log *zap.Logger, now func() time.Time, onUnlock UnlockListener) *Store {
	if now == nil {
		now = time.Now
	}
	if onUnlock == nil {
		onUnlock = func(achievements.Achievement) {}
	}
	s := &Store{log: log, storage: st, now: now, onUnlock: onUnlock}

	blob, ok, err := st.Load(StorageKey)
	if err != nil {
		log.Error("failed to load persisted state", zap.Error(err))
	}
	defaults := model.DefaultState(now())
	if ok {
		merged, mergeErr := Merge(defaults, blob, now())
		if mergeErr != nil {
			log.Error("corrupt persisted state, defaults kept for unreadable keys", zap.Error(mergeErr))
		}
		s.state = merged
	} else {
		merged, _ := Merge(defaults, nil, now())
		s.state = merged
	}

	s.mu.Lock()
	s.persistLocked()
	newly := s.evaluateLocked()
	s.mu.Unlock()
	s.notify(newly)
	return s
}

// Get returns a deep copy of the current snapshot.
func (s *Store) Get() model.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Update applies a pure transformation to the state. The commit is persisted
// first, then achievements are evaluated against the new state; any unlock is
// merged in as a second persisted commit. Persistence failures are logged
// only, never surfaced: the in-memory state keeps the change.
func (s *Store) Update(fn func(model.AppState) model.AppState) {
	s.mu.Lock()
	s.state = fn(s.state.Clone())
	s.persistLocked()
	newly := s.evaluateLocked()
	s.mu.Unlock()
	s.notify(newly)
}

func (s *Store) persistLocked() {
	blob, err := json.Marshal(s.state)
	if err != nil {
		s.log.Error("failed to serialize state", zap.Error(err))
		return
	}
	if err := s.storage.Save(StorageKey, blob); err != nil {
		s.log.Error("failed to persist state", zap.Error(err))
	}
}

// evaluateLocked unions newly passing achievements into the unlocked set and
// persists the second commit. Unlocking is idempotent and the set only grows.
func (s *Store) evaluateLocked() []achievements.Achievement {
	newly := achievements.Evaluate(s.state)
	if len(newly) == 0 {
		return nil
	}
	for _, a := range newly {
		s.state.Achievements.Unlocked = append(s.state.Achievements.Unlocked, a.ID)
	}
	s.persistLocked()
	return newly
}

func (s *Store) notify(newly []achievements.Achievement) {
	for _, a := range newly {
		s.onUnlock(a)
	}
}
