package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs validator tags over a request DTO and flattens the
// failures into a field→reason map for the response envelope.
func ValidateStruct(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	details := make(map[string]string)
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		details["request"] = err.Error()
		return details
	}

	for _, fieldErr := range validationErrors {
		field := strings.ToLower(fieldErr.Field())
		switch fieldErr.Tag() {
		case "required":
			details[field] = "is required"
		case "email":
			details[field] = "must be a valid email address"
		case "min":
			details[field] = fmt.Sprintf("must be at least %s", fieldErr.Param())
		case "max":
			details[field] = fmt.Sprintf("must be at most %s", fieldErr.Param())
		case "len":
			details[field] = fmt.Sprintf("must be exactly %s characters", fieldErr.Param())
		case "numeric":
			details[field] = "must be numeric"
		case "oneof":
			details[field] = fmt.Sprintf("must be one of: %s", fieldErr.Param())
		default:
			details[field] = fmt.Sprintf("failed %s validation", fieldErr.Tag())
		}
	}
	return details
}
