package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate runs struct validation and folds field errors into ErrValidation.
func Validate(v *validator.Validate, target any) error {
	if err := v.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, describeField(fe))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
	}
	return nil
}

func describeField(fe validator.FieldError) string {
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte", "gt":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte", "lt":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "email":
		return field + " must be a valid email"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
