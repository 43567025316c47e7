// Package achievements holds the static registry of milestones and the
// evaluation pass run after every state commit.
package achievements

import (
	"strings"
	"time"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
)

// Progress is the current/target pair shown for partially completed milestones.
type Progress struct {
	Current int `json:"current"`
	Target  int `json:"target"`
}

// Achievement couples a pure unlock predicate with optional progress. Checkers
// read the whole state and must stay side-effect free.
type Achievement struct {
	ID          string
	Title       string
	Description string
	Icon        string
	Check       func(model.AppState) bool
	Progress    func(model.AppState) Progress
}

var produceKeywords = []string{"яблоко", "банан", "салат", "овощи", "брокколи"}

func countWaterEntries(s model.AppState) int {
	count := 0
	for _, e := range s.Diary.Entries {
		if strings.Contains(strings.ToLower(e.Food), "вода") {
			count++
		}
	}
	return count
}

// Registry lists all achievements in evaluation order.
var Registry = []Achievement{
	{
		ID:          "first_scan",
		Title:       "Первый шаг",
		Description: "Сделайте свой первый скан еды.",
		Icon:        "camera",
		Check: func(s model.AppState) bool {
			return len(s.Diary.Entries) > 0
		},
	},
	{
		ID:          "healthy_choice",
		Title:       "Здоровый выбор",
		Description: "Отсканируйте фрукт или овощ.",
		Icon:        "nutrition",
		Check: func(s model.AppState) bool {
			for _, e := range s.Diary.Entries {
				food := strings.ToLower(e.Food)
				for _, kw := range produceKeywords {
					if strings.Contains(food, kw) {
						return true
					}
				}
			}
			return false
		},
	},
	{
		ID:          "full_day",
		Title:       "Полный день",
		Description: "Запишите 3 приёма пищи за день.",
		Icon:        "fact_check",
		Check: func(s model.AppState) bool {
			return len(s.Diary.Entries) >= 3
		},
		Progress: func(s model.AppState) Progress {
			return Progress{Current: len(s.Diary.Entries), Target: 3}
		},
	},
	{
		ID:          "protein_pro",
		Title:       "Протеиновый профи",
		Description: "Запишите блюдо с более чем 30г белка.",
		Icon:        "fitness_center",
		Check: func(s model.AppState) bool {
			for _, e := range s.Diary.Entries {
				if e.Protein > 30 {
					return true
				}
			}
			return false
		},
	},
	{
		ID:          "weekly_streak",
		Title:       "Недельная серия",
		Description: "Запишите 7 приёмов пищи.",
		Icon:        "calendar_month",
		Check: func(s model.AppState) bool {
			return len(s.Diary.Entries) >= 7
		},
		Progress: func(s model.AppState) Progress {
			return Progress{Current: len(s.Diary.Entries), Target: 7}
		},
	},
	{
		ID:          "hydration_hero",
		Title:       "Герой гидратации",
		Description: "Запишите 8 стаканов воды.",
		Icon:        "water_drop",
		Check: func(s model.AppState) bool {
			return countWaterEntries(s) >= 8
		},
		Progress: func(s model.AppState) Progress {
			return Progress{Current: countWaterEntries(s), Target: 8}
		},
	},
	{
		ID:          "weekend_warrior",
		Title:       "Воин выходных",
		Description: "Запишите два приёма пищи в выходные дни.",
		Icon:        "celebration",
		Check: func(s model.AppState) bool {
			latest := s.Diary.Entries
			if len(latest) > 14 {
				latest = latest[:14]
			}
			weekend := 0
			for _, e := range latest {
				switch e.Timestamp.Weekday() {
				case time.Saturday, time.Sunday:
					weekend++
				}
			}
			return weekend >= 2
		},
	},
	{
		ID:          "macro_balancer",
		Title:       "Мастер баланса",
		Description: "Обсудите свой рацион с ИИ-коучем.",
		Icon:        "balance",
		Check: func(s model.AppState) bool {
			return len(s.CoachHistory) >= 3
		},
		Progress: func(s model.AppState) Progress {
			current := len(s.CoachHistory)
			if current > 3 {
				current = 3
			}
			return Progress{Current: current, Target: 3}
		},
	},
	{
		ID:          "night_mode",
		Title:       "Ночной дозор",
		Description: "Запишите приём пищи после 22:00.",
		Icon:        "bedtime",
		Check: func(s model.AppState) bool {
			for _, e := range s.Diary.Entries {
				if e.Timestamp.Hour() >= 22 {
					return true
				}
			}
			return false
		},
	},
}

// Evaluate returns the achievements whose checkers pass but whose ids are not
// yet unlocked, in registry order. It never mutates state.
func Evaluate(s model.AppState) []Achievement {
	var newly []Achievement
	for _, a := range Registry {
		if s.HasUnlocked(a.ID) {
			continue
		}
		if a.Check(s) {
			newly = append(newly, a)
		}
	}
	return newly
}

// ByID looks up a registered achievement.
func ByID(id string) (Achievement, bool) {
	for _, a := range Registry {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}
