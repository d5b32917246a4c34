package controller

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateDTO checks the validate tags of dto. Failures become a
// validation.failed AppError whose details map each JSON field to the rule it broke.
func ValidateDTO(dto any) error {
	if dto == nil {
		return NewValidationErrorWithCode("validation.invalid_body", "request body is required", map[string]any{"reason": "empty"}, nil)
	}
	if v := reflect.ValueOf(dto); v.Kind() == reflect.Pointer && v.IsNil() {
		return NewValidationErrorWithCode("validation.invalid_body", "request body is required", map[string]any{"reason": "empty"}, nil)
	}

	err := validate.Struct(dto)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationErrorWithCode("validation.invalid_body", "request body is not valid", map[string]any{"reason": err.Error()}, nil)
	}

	fields := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
	}
	return NewValidationError("validation failed", map[string]any{"fields": fields})
}
