// Package nutrition computes daily intake targets from a user profile.
package nutrition

import "github.com/filagate03/FIT-AAAAAI/internal/model"

const (
	// calorieAdjustment is the fixed deficit/surplus applied toward a weight goal.
	calorieAdjustment = 400
	minCaloriesMale   = 1500
	minCaloriesFemale = 1200

	proteinRatio = 0.30
	fatRatio     = 0.30
	carbsRatio   = 0.40

	kcalPerGramProtein = 4
	kcalPerGramFat     = 9
	kcalPerGramCarbs   = 4
)

var activityMultipliers = map[model.ActivityLevel]float64{
	model.ActivitySedentary:  1.2,
	model.ActivityLight:      1.375,
	model.ActivityModerate:   1.55,
	model.ActivityActive:     1.725,
	model.ActivityVeryActive: 1.9,
}

// CalculateBMR applies the Mifflin-St Jeor equation. Female and other share
// the same constant term.
func CalculateBMR(p model.Profile) float64 {
	base := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	if p.Gender == model.GenderMale {
		return base + 5
	}
	return base - 161
}

// CalculateTDEE scales BMR by the activity multiplier. Unknown levels fall
// back to sedentary.
func CalculateTDEE(bmr float64, level model.ActivityLevel) float64 {
	mult, ok := activityMultipliers[level]
	if !ok {
		mult = activityMultipliers[model.ActivitySedentary]
	}
	return bmr * mult
}

// CalculateCalorieGoal adjusts TDEE toward the weight goal and clamps the
// result to a safe minimum. The floor applies to every branch, maintenance
// included.
func CalculateCalorieGoal(tdee, currentWeight, goalWeight float64, gender model.Gender) float64 {
	goal := tdee
	switch {
	case goalWeight < currentWeight:
		goal = tdee - calorieAdjustment
	case goalWeight > currentWeight:
		goal = tdee + calorieAdjustment
	}

	floor := float64(minCaloriesFemale)
	if gender == model.GenderMale {
		floor = minCaloriesMale
	}
	if goal < floor {
		return floor
	}
	return goal
}

// CalculateMacros splits a calorie target 30/30/40 across protein, fat and
// carbs at 4/9/4 kcal per gram.
func CalculateMacros(calories float64) (protein, fat, carbs float64) {
	protein = calories * proteinRatio / kcalPerGramProtein
	fat = calories * fatRatio / kcalPerGramFat
	carbs = calories * carbsRatio / kcalPerGramCarbs
	return protein, fat, carbs
}

// IntakeFor runs the full profile -> BMR -> TDEE -> goal -> macros chain.
func IntakeFor(p model.Profile) model.DailyIntake {
	bmr := CalculateBMR(p)
	tdee := CalculateTDEE(bmr, p.ActivityLevel)
	calories := CalculateCalorieGoal(tdee, p.WeightKg, p.GoalWeightKg, p.Gender)
	protein, fat, carbs := CalculateMacros(calories)
	return model.DailyIntake{Calories: calories, Protein: protein, Fat: fat, Carbs: carbs}
}
