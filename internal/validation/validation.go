// Package validation wraps validator/v10 with the platform's password rule and maps
// failures onto domain.ErrValidation.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"quizplay/internal/domain"
)

// New returns a validator with the password rule registered under the "password" tag.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return domain.ValidPassword(fl.Field().String())
	})
	return v
}

// Check runs struct validation and reports failures as ErrValidation.
func Check(v *validator.Validate, input any) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeField(fe))
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "password":
		return fe.Field() + " needs 8+ characters with an upper-case letter, a digit and a special character"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
