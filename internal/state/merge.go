package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
)

// Merge overlays a persisted state document over hard defaults. The overlay is
// key-wise per top-level key: persisted keys win, missing keys keep their
// default. A document that does not decode at all yields the defaults; a key
// that does not decode keeps its default while the rest still applies. Either
// way the error is returned so the caller can log it, and the merged state is
// always usable.
func Merge(defaults model.AppState, persisted []byte, now time.Time) (model.AppState, error) {
	merged := defaults.Clone()
	var mergeErr error

	if len(persisted) > 0 {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(persisted, &doc); err != nil {
			return defaults.Clone(), err
		}
		mergeErr = errors.Join(
			overlay(doc, "profile", &merged.Profile),
			overlay(doc, "diary", &merged.Diary),
			overlay(doc, "achievements", &merged.Achievements),
			overlay(doc, "coachHistory", &merged.CoachHistory),
			overlay(doc, "subscription", &merged.Subscription),
			overlay(doc, "settings", &merged.Settings),
			overlay(doc, "billing", &merged.Billing),
		)
	}

	if merged.Diary.Entries == nil {
		merged.Diary.Entries = []model.DiaryEntry{}
	}
	if merged.Achievements.Unlocked == nil {
		merged.Achievements.Unlocked = []string{}
	}
	if len(merged.Diary.WeightHistory) == 0 {
		merged.Diary.WeightHistory = []model.WeightEntry{{
			Timestamp: now,
			WeightKg:  merged.Profile.WeightKg,
		}}
	}
	if merged.Diary.InitialWeight == 0 {
		merged.Diary.InitialWeight = merged.Profile.WeightKg
	}

	return merged, mergeErr
}

// overlay unmarshals the raw value for key onto dst, which already carries
// defaults; absent keys leave dst untouched. A value that fails to decode
// also leaves dst untouched.
func overlay[T any](doc map[string]json.RawMessage, key string, dst *T) error {
	raw, ok := doc[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	decoded := *dst
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	*dst = decoded
	return nil
}
