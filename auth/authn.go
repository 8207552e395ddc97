package auth

import (
	"context"
)

// PasswordHasher hashes passwords one way and verifies them against stored hashes.
type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, hash []byte) bool
}

// PasswordAuthenticator authenticates an account using a username and a password.
//
// It returns ErrBadCredentials in case credentials are invalid.
// This error should only be returned if credential verification fails.
// Any other error (eg. connection problems) should be returned directly.
type PasswordAuthenticator interface {
	Authenticate(ctx context.Context, username string, password string) (Account, error)
}

// UserStore persists accounts.
//
// FindByUsername returns ErrAccountNotFound if there is no such account.
// Save returns ErrUsernameTaken if the username is already registered.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (Account, error)
	Save(ctx context.Context, account Account) (Account, error)
}

// RoleStore looks up roles by name.
//
// FindByName returns ErrRoleNotFound if there is no such role.
type RoleStore interface {
	FindByName(ctx context.Context, name string) (Role, error)
}

// RegistrationRequest is the input of account registration.
type RegistrationRequest struct {
	Username string `json:"username" schema:"username"`
	Password string `json:"password" schema:"password"`
	Email    string `json:"email" schema:"email"`
}

// Validator inspects a registration request. An empty result means the request is valid.
type Validator interface {
	Validate(r RegistrationRequest) []Violation
}
