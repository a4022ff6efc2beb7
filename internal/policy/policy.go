// Package policy implements login and password validation rules.
package policy

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/and161185/persondb/internal/errs"
	"github.com/go-playground/validator/v10"
)

// DefaultMinPasswordLen is the minimum password length of the default policy.
const DefaultMinPasswordLen = 10

const complexityTag = "pwclasses"

// Policy validates logins and passwords. The zero value is not usable; use New or Default.
type Policy struct {
	minPasswordLen int
	v              *validator.Validate
	loginTag       string
	passwordTag    string
}

// New builds a policy with the given minimum password length.
func New(minPasswordLen int) (*Policy, error) {
	if minPasswordLen < 3 {
		// one char per required class
		return nil, fmt.Errorf("policy: min password length %d < 3", minPasswordLen)
	}
	v := validator.New()
	if err := v.RegisterValidation(complexityTag, hasRequiredClasses); err != nil {
		return nil, err
	}
	return &Policy{
		minPasswordLen: minPasswordLen,
		v:              v,
		loginTag:       "required,alphanum",
		passwordTag:    fmt.Sprintf("required,min=%d,alphanum,%s", minPasswordLen, complexityTag),
	}, nil
}

// Default returns the standard policy (min length 10).
func Default() *Policy {
	p, err := New(DefaultMinPasswordLen)
	if err != nil {
		panic(err)
	}
	return p
}

// MinPasswordLen returns the configured minimum password length.
func (p *Policy) MinPasswordLen() int { return p.minPasswordLen }

// ValidateLogin checks that login is non-empty and consists of ASCII letters and digits.
// Uniqueness is the store's concern.
func (p *Policy) ValidateLogin(login string) error {
	err := p.v.Var(login, p.loginTag)
	if err == nil {
		return nil
	}
	switch failedTag(err) {
	case "required":
		return errs.NewValidation("login", errs.KindEmptyLogin, "")
	case "alphanum":
		return errs.NewValidation("login", errs.KindInvalidLogin, "only letters and digits are allowed")
	}
	return err
}

// ValidatePassword checks the complexity policy: minimum length, at least one
// uppercase letter, one lowercase letter and one digit, and nothing but letters and digits.
func (p *Policy) ValidatePassword(password string) error {
	err := p.v.Var(password, p.passwordTag)
	if err == nil {
		return nil
	}
	var reason string
	switch failedTag(err) {
	case "required":
		reason = "empty"
	case "min":
		reason = fmt.Sprintf("shorter than %d characters", p.minPasswordLen)
	case "alphanum":
		reason = "only letters and digits are allowed"
	case complexityTag:
		reason = "needs an uppercase letter, a lowercase letter and a digit"
	default:
		return err
	}
	return errs.NewValidation("password", errs.KindWeakPassword, reason)
}

func failedTag(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return ve[0].Tag()
	}
	return ""
}

func hasRequiredClasses(fl validator.FieldLevel) bool {
	var upper, lower, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
