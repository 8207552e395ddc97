// Package memory provides in-process user and role stores.
package memory

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/identitykit/auth/auth"
)

// Store keeps accounts and roles in memory.
// The zero value is ready to use.
type Store struct {
	accounts map[string]auth.Account
	roles    map[string]auth.Role

	initOnce sync.Once
	mu       sync.RWMutex
}

// NewStore returns a Store seeded with roles.
func NewStore(roleNames ...string) *Store {
	s := &Store{}
	s.init()

	for _, name := range roleNames {
		s.AddRole(name)
	}

	return s
}

func (s *Store) init() {
	s.initOnce.Do(func() {
		if s.accounts == nil {
			s.accounts = make(map[string]auth.Account)
		}

		if s.roles == nil {
			s.roles = make(map[string]auth.Role)
		}
	})
}

// AddRole registers a role if it does not exist yet and returns it.
func (s *Store) AddRole(name string) auth.Role {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	if role, ok := s.roles[name]; ok {
		return role
	}

	role := auth.Role{
		ID:   int64(len(s.roles) + 1),
		Name: name,
	}
	s.roles[name] = role

	return role
}

// RemoveRole takes a role away from an account.
func (s *Store) RemoveRole(username string, name string) error {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[username]
	if !ok {
		return auth.ErrAccountNotFound
	}

	account.Roles = slices.DeleteFunc(slices.Clone(account.Roles), func(r auth.Role) bool {
		return r.Name == name
	})
	s.accounts[username] = account

	return nil
}

// FindByName implements the auth.RoleStore interface.
func (s *Store) FindByName(_ context.Context, name string) (auth.Role, error) {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[name]
	if !ok {
		return auth.Role{}, auth.ErrRoleNotFound
	}

	return role, nil
}

// FindByUsername implements the auth.UserStore interface.
func (s *Store) FindByUsername(_ context.Context, username string) (auth.Account, error) {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[username]
	if !ok {
		return auth.Account{}, auth.ErrAccountNotFound
	}

	return clone(account), nil
}

// Save implements the auth.UserStore interface.
func (s *Store) Save(_ context.Context, account auth.Account) (auth.Account, error) {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Username]; ok {
		return auth.Account{}, auth.ErrUsernameTaken
	}

	s.accounts[account.Username] = clone(account)

	return clone(account), nil
}

func clone(account auth.Account) auth.Account {
	account.PasswordHash = slices.Clone(account.PasswordHash)
	account.Roles = slices.Clone(account.Roles)

	return account
}
