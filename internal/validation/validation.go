// Package validation performs struct validation and translates violations into
// the API error types.
package validation

import (
	"strings"

	"clinic-booking/internal/apierrors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Struct validates the given struct using its validate tags. The first violation
// is translated into an apierrors.ValidationError.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	violations, isViolations := err.(validator.ValidationErrors)
	if !isViolations || len(violations) == 0 {
		return err
	}
	first := violations[0]
	return apierrors.NewValidationError(strings.ToLower(first.Field()), reason(first))
}

func reason(violation validator.FieldError) string {
	switch violation.Tag() {
	case "required":
		return "required"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "email":
		return "invalid email"
	case "oneof":
		return "invalid value"
	default:
		return "invalid"
	}
}
