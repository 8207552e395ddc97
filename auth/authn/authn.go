package authn

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/identitykit/auth/auth"
)

// StoreAuthenticator authenticates accounts found in an auth.UserStore.
type StoreAuthenticator struct {
	users  auth.UserStore
	hasher auth.PasswordHasher

	dummyHash []byte
}

// NewStoreAuthenticator returns a new StoreAuthenticator.
//
// Unknown usernames are verified against a dummy hash produced by the same hasher.
func NewStoreAuthenticator(users auth.UserStore, hasher auth.PasswordHasher) (StoreAuthenticator, error) {
	random := make([]byte, 24)
	if _, err := rand.Read(random); err != nil {
		return StoreAuthenticator{}, fmt.Errorf("generate dummy password: %w", err)
	}

	dummyHash, err := hasher.Hash(base64.RawURLEncoding.EncodeToString(random))
	if err != nil {
		return StoreAuthenticator{}, err
	}

	return StoreAuthenticator{
		users:     users,
		hasher:    hasher,
		dummyHash: dummyHash,
	}, nil
}

// Authenticate implements the auth.PasswordAuthenticator interface.
func (a StoreAuthenticator) Authenticate(ctx context.Context, username string, password string) (auth.Account, error) {
	account, err := a.users.FindByUsername(ctx, username)
	if errors.Is(err, auth.ErrAccountNotFound) {
		// timing attack paranoia
		a.hasher.Verify(password, a.dummyHash)

		return auth.Account{}, auth.ErrBadCredentials
	}
	if err != nil {
		return auth.Account{}, err
	}

	if !a.hasher.Verify(password, account.PasswordHash) {
		return auth.Account{}, auth.ErrBadCredentials
	}

	return account, nil
}
