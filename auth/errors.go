package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidationFailed is matched by a *ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrBadCredentials is returned when a username is unknown or the password does not match.
	// The two cases are indistinguishable to the caller.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrInvalidToken is returned for malformed, forged or wrong-kind tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned for well-formed tokens used at or past their expiry.
	ErrExpiredToken = errors.New("expired token")

	// ErrRegistrationFailed is matched by a *RegistrationError.
	ErrRegistrationFailed = errors.New("registration failed")

	// ErrStoreUnavailable is matched by a *StoreError.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrForbidden is returned when a valid access token lacks a required authority.
	ErrForbidden = errors.New("forbidden")
)

// Store lookup errors.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrRoleNotFound    = errors.New("role not found")
	ErrUsernameTaken   = errors.New("username already taken")
)

// Violation is a single field-level validation failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in a request.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// RegistrationError is returned when an account cannot be persisted.
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string {
	return e.Err.Error()
}

func (e *RegistrationError) Is(target error) bool {
	return target == ErrRegistrationFailed
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// StoreError is returned when a store call fails for reasons other than a missing record.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
