// Package validation owns the shared struct validator so HTTP decoding and
// service-level edit structs report failures the same way.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsPhoneNumber(fl.Field().String())
	})
	return v
}

// Struct validates v and converts failures to a VALIDATION_ERROR keyed by json field.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return Format(err)
	}
	return nil
}

// Format turns validator output into the API error shape.
func Format(err error) *pkgerrors.Error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = message(fieldErr)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

// FieldError builds a single-field VALIDATION_ERROR for checks tags cannot express.
func FieldError(field, msg string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: msg})
}

// NormalizePhone strips separators a customer may type.
func NormalizePhone(raw string) string {
	return strings.NewReplacer("+", "", "-", "", " ", "").Replace(strings.TrimSpace(raw))
}

// IsPhoneNumber accepts 10 to 15 digits once separators are stripped.
func IsPhoneNumber(raw string) bool {
	digits := NormalizePhone(raw)
	if len(digits) < 10 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid url"
	case "datetime":
		return fmt.Sprintf("must match %s", fe.Param())
	case "phone":
		return "must contain 10 to 15 digits"
	}
	return "is invalid"
}
