package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

// validateInput turns the first failed rule into an ErrInvalid carrying a
// readable message.
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErr.ErrInvalid
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return appErr.New(appErr.ErrInvalid, fe.Field()+" is required")
	case "email":
		return appErr.New(appErr.ErrInvalid, "please enter a valid email")
	default:
		return appErr.New(appErr.ErrInvalid, fe.Field()+" is invalid")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
