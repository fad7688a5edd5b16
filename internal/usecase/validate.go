package usecase

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"health-insurance-portal/internal/domain"
)

var validate = validator.New()

// validateStruct runs struct tags and maps failures to domain.ValidationErrors.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	out := make(domain.ValidationErrors, 0, len(ves))
	for _, fe := range ves {
		out = append(out, &domain.ValidationError{Field: toSnake(fe.Field()), Reason: reason(fe)})
	}
	return out
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "email":
		return "must be an email address"
	case "url":
		return "must be an absolute URL"
	case "len":
		return "must have length " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
