package service

import (
	"errors"
	"fmt"
	"strings"

	"cardshop/internal/domain"

	"github.com/go-playground/validator/v10"
)

// newValidator returns the struct validator shared by the services
func newValidator() *validator.Validate {
	return validator.New()
}

// validationError turns validator output into a domain.ValidationError for the first failing field
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())

	var reason string
	switch fe.Tag() {
	case "required":
		reason = fmt.Sprintf("%s is required", field)
	case "max":
		if fe.Kind().String() == "slice" {
			reason = fmt.Sprintf("at most %s %s allowed", fe.Param(), field)
		} else {
			reason = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
	case "min":
		reason = fmt.Sprintf("at least %s %s required", fe.Param(), field)
	case "gte":
		reason = fmt.Sprintf("%s cannot be negative", field)
	case "lte":
		reason = fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		reason = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		reason = fmt.Sprintf("%s is invalid", field)
	}

	return domain.NewValidationError(field, reason)
}
