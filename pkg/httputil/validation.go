package httputil

import (
	stderrors "errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
	"github.com/go-playground/validator/v10"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

var validate = newValidator()

// newValidator reports fields under their JSON names and knows the clinic
// domain tags: role (a tenant.Role) and currency (ISO 4217, upper case).
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	must(v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return tenant.Role(fl.Field().String()).Valid()
	}))
	must(v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return currencyCode.MatchString(fl.Field().String())
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Validate checks v's validate tags. Failures come back as a VALIDATION_ERROR
// whose details are keyed by JSON field name.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.BadRequest("request body cannot be validated")
	}

	details := make(map[string]string, len(fieldErrs))
	for _, e := range fieldErrs {
		details[e.Field()] = message(e)
	}
	return errors.Validation(details)
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(e.Param(), " ", ", ")
	case "role":
		return "must be a known role"
	case "currency":
		return "must be a three-letter ISO 4217 code"
	case "len":
		return "must be exactly " + e.Param() + unit(e)
	case "min":
		return "must be at least " + e.Param() + unit(e)
	case "max":
		return "must be at most " + e.Param() + unit(e)
	}
	return "invalid value"
}

// unit is the suffix for length-style bounds: strings count characters,
// numbers are compared as values.
func unit(e validator.FieldError) string {
	switch e.Kind() {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Map, reflect.Array:
		return " items"
	}
	return ""
}
