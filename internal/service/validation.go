package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			for _, r := range fl.Field().String() {
				if unicode.IsSpace(r) || !unicode.IsPrint(r) {
					return false
				}
			}
			return true
		})
	})
	return validate
}

// RegisterRequest is the input of AccountService.Register.
type RegisterRequest struct {
	Username string `validate:"required,min=3,max=32,username"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// ProfileRequest is the input of AccountService.UpdateProfile.
type ProfileRequest struct {
	Username string `validate:"required,min=3,max=32,username"`
	Email    string `validate:"required,email"`
}

// validateStruct runs the struct tags and folds failures into ErrInvalidInput.
func validateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return "email is not a valid address"
	case "username":
		return "username cannot contain spaces"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
