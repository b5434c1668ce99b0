package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates s against its `validate` tags
func Struct(s any) error {
	return validate.Struct(s)
}

// FormatValidationError turns validator errors into a field -> message map.
// It returns nil when err carries no validator.ValidationErrors.
func FormatValidationError(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	details := make(map[string]string)
	for _, err := range verrs {
		field := err.Field()

		switch err.Tag() {
		case "required":
			details[field] = fmt.Sprintf("%s is required", field)
		case "min":
			details[field] = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "max":
			details[field] = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "gt":
			details[field] = fmt.Sprintf("%s must be greater than %s", field, err.Param())
		case "gte":
			details[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
		case "email":
			details[field] = fmt.Sprintf("%s must be a valid email", field)
		case "uuid":
			details[field] = fmt.Sprintf("%s must be a valid id", field)
		default:
			details[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return details
}
