package handler

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const passwordSpecials = "@$!%*?&."

var passwordCharset = regexp.MustCompile(`^[A-Za-z\d@$!%*?&.]{8,16}$`)

// ValidatePassword is the "password" validation tag: 8 to 16 characters from
// letters, digits and @$!%*?&. with at least one lowercase letter, one
// uppercase letter, one digit and one special character.
func ValidatePassword(fl validator.FieldLevel) bool {
	return IsStrongPassword(fl.Field().String())
}

// IsStrongPassword reports whether p satisfies the password policy.
func IsStrongPassword(p string) bool {
	if !passwordCharset.MatchString(p) {
		return false
	}
	return strings.ContainsAny(p, "abcdefghijklmnopqrstuvwxyz") &&
		strings.ContainsAny(p, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") &&
		strings.ContainsAny(p, "0123456789") &&
		strings.ContainsAny(p, passwordSpecials)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns a validator with the password tag registered.
func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("password", ValidatePassword)
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
