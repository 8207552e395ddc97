// Package validate checks registration requests field by field.
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/identitykit/auth/auth"
)

// Password bounds. bcrypt ignores everything past 72 bytes.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// RegistrationValidator is the default auth.Validator.
type RegistrationValidator struct {
	MinUsernameLength int
	MaxUsernameLength int
}

// NewRegistrationValidator returns a RegistrationValidator with default limits.
func NewRegistrationValidator() RegistrationValidator {
	return RegistrationValidator{
		MinUsernameLength: 3,
		MaxUsernameLength: 64,
	}
}

// Validate implements the auth.Validator interface.
// Each field reports at most one violation.
func (v RegistrationValidator) Validate(r auth.RegistrationRequest) []auth.Violation {
	var violations []auth.Violation

	if msg := v.username(r.Username); msg != "" {
		violations = append(violations, auth.Violation{Field: "username", Message: msg})
	}

	if msg := password(r.Password); msg != "" {
		violations = append(violations, auth.Violation{Field: "password", Message: msg})
	}

	if msg := email(r.Email); msg != "" {
		violations = append(violations, auth.Violation{Field: "email", Message: msg})
	}

	return violations
}

func (v RegistrationValidator) username(username string) string {
	n := utf8.RuneCountInString(username)

	switch {
	case strings.TrimSpace(username) == "":
		return "must not be blank"
	case n < v.MinUsernameLength || n > v.MaxUsernameLength:
		return fmt.Sprintf("size must be between %d and %d", v.MinUsernameLength, v.MaxUsernameLength)
	case !usernamePattern.MatchString(username):
		return "may only contain letters, digits, '.', '_' and '-'"
	}

	return ""
}

func password(password string) string {
	switch {
	case password == "":
		return "must not be blank"
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return fmt.Sprintf("must be at least %d characters long", MinPasswordLength)
	case len(password) > MaxPasswordBytes:
		return fmt.Sprintf("must be at most %d bytes long", MaxPasswordBytes)
	}

	return ""
}

func email(email string) string {
	if strings.TrimSpace(email) == "" {
		return "must not be blank"
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "must be a well-formed email address"
	}

	return ""
}
