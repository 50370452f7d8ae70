package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"activity-engine/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Error maps a JSON field name to a human-readable problem.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Is lets callers treat any validation failure as domain.ErrInvalidArgument.
func (e *Error) Is(target error) bool { return target == domain.ErrInvalidArgument }

// Validator wraps go-playground/validator so failures are reported by JSON field name.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s against its `validate` tags. Returns *Error on rule failures.
func (v *Validator) Struct(s any) error {
	return v.convert(v.validate.Struct(s), "")
}

// ID checks that value is a well-formed resource id.
func (v *Validator) ID(field, value string) error {
	return v.convert(v.validate.Var(value, "required,uuid"), field)
}

func (v *Validator) convert(err error, field string) error {
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return err
	}
	out := make(map[string]string, len(fes))
	for _, fe := range fes {
		name := fe.Field()
		if name == "" {
			name = field
		}
		out[name] = message(fe)
	}
	return &Error{Fields: out}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid id"
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must be at least %s characters long", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must be at most %s characters long", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or greater", fe.Param())
	case "lte":
		return fmt.Sprintf("must be %s or less", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", fe.Param())
	case "alpha":
		return "must contain letters only"
	case "datetime":
		return fmt.Sprintf("must match layout %s", fe.Param())
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("is invalid (failed on '%s')", fe.Tag())
	}
}
