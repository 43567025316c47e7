// Package apperror provides utilities to handle and map custom validation errors.
package apperror

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	errRequired       = errors.New("is required")
	errMustBePositive = errors.New("must be a positive number")
	errNotNegative    = errors.New("must not be negative")
	errInvalidGender  = errors.New("must be one of male, female or other")
	errInvalidLevel   = errors.New("must be a known activity level")
	errInvalidTier    = errors.New("must be pro or premium")
	errInvalidPeriod  = errors.New("must be month or year")
)

var customErrors = map[string]error{
	"Profile.Name.required":          errRequired,
	"Profile.Age.required":           errRequired,
	"Profile.Age.gt":                 errMustBePositive,
	"Profile.WeightKg.required":      errRequired,
	"Profile.WeightKg.gt":            errMustBePositive,
	"Profile.HeightCm.required":      errRequired,
	"Profile.HeightCm.gt":            errMustBePositive,
	"Profile.Gender.required":        errRequired,
	"Profile.Gender.oneof":           errInvalidGender,
	"Profile.ActivityLevel.required": errRequired,
	"Profile.ActivityLevel.oneof":    errInvalidLevel,
	"Profile.GoalWeightKg.required":  errRequired,
	"Profile.GoalWeightKg.gt":        errMustBePositive,

	"EntryInput.Food.required":    errRequired,
	"EntryInput.PortionGrams.gte": errNotNegative,
	"EntryInput.Calories.gte":     errNotNegative,
	"EntryInput.Protein.gte":      errNotNegative,
	"EntryInput.Fat.gte":          errNotNegative,
	"EntryInput.Carbs.gte":        errNotNegative,

	"CreatePaymentRequest.Tier.required":   errRequired,
	"CreatePaymentRequest.Tier.oneof":      errInvalidTier,
	"CreatePaymentRequest.Period.required": errRequired,
	"CreatePaymentRequest.Period.oneof":    errInvalidPeriod,

	"CoachMessageRequest.Text.required": errRequired,
	"ScanRequest.Image.required":        errRequired,
}

// CustomValidationError converts validator errors into a standardized format.
func CustomValidationError(err error) []map[string]string {
	errList := make([]map[string]string, 0)

	var validationErr validator.ValidationErrors

	switch {
	case errors.As(err, &validationErr):
		for _, e := range validationErr {
			field := e.StructNamespace()
			key := field + "." + e.Tag()

			errMsg := fmt.Sprintf("%s is invalid", field)
			if v, ok := customErrors[key]; ok {
				errMsg = v.Error()
			}

			errList = append(errList, map[string]string{e.Field(): errMsg})
		}
	}
	return errList
}
