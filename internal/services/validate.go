package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// Report json names so messages match what the client sent.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// validateInput runs struct validation and folds the first failure into an
// invalid ServiceError.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewInvalidError(err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return NewInvalidError(fmt.Sprintf("%s is required", fe.Field()))
	case "oneof":
		return NewInvalidError(fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
	case "gt", "gte", "min":
		return NewInvalidError(fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
	case "email":
		return NewInvalidError(fmt.Sprintf("%s must be a valid email", fe.Field()))
	}
	return NewInvalidError(fmt.Sprintf("%s is invalid", fe.Field()))
}
