// Package commands holds what every command service shares: the Command
// contract and struct-tag validation.
package commands

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahrav/academy/internal/domain/shared"
)

// Command is an intent to change state, named for logs and spans.
type Command interface {
	CommandName() string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Validate ids and amounts through their natural scalar form so the usual
	// tags (required, gt, gte, lte) apply.
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		id, ok := f.Interface().(uuid.UUID)
		if !ok || id == uuid.Nil {
			return ""
		}
		return id.String()
	}, uuid.UUID{})
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		d, ok := f.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		return d.InexactFloat64()
	}, decimal.Decimal{})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks cmd's struct tags. The first violation is returned as a
// *shared.ValidationError wrapping the validator's error.
func Validate(cmd Command) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &shared.ValidationError{Reason: fmt.Sprintf("%s: %v", cmd.CommandName(), err), Err: err}
	}

	fe := verrs[0]
	return &shared.ValidationError{Field: fe.Namespace(), Reason: reason(fe), Err: err}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "credit_card":
		return "must be a valid card number"
	case "numeric":
		return "must contain only digits"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
