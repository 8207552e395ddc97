package auth

import (
	"time"

	"golang.org/x/exp/slices"
)

// DefaultRole is the role assigned to newly registered accounts unless configured otherwise.
const DefaultRole = "ROLE_USER"

// Role is a named authority label shared by many accounts.
type Role struct {
	ID   int64
	Name string
}

// Account is a registered user.
//
// PasswordHash always holds the output of a PasswordHasher, never the plaintext password.
type Account struct {
	ID           string
	Username     string
	PasswordHash []byte
	Email        string
	Roles        []Role
	CreatedAt    time.Time
}

// Authorities returns the sorted, de-duplicated role names of the account.
func (a Account) Authorities() []string {
	names := make([]string, 0, len(a.Roles))
	for _, role := range a.Roles {
		names = append(names, role.Name)
	}

	return NormalizeAuthorities(names)
}

// View returns the public projection of the account.
func (a Account) View() AccountView {
	return AccountView{
		Username: a.Username,
		Email:    a.Email,
		Roles:    a.Authorities(),
	}
}

// AccountView is the part of an Account that may leave the service.
type AccountView struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// Credentials are supplied by a caller for a single authentication attempt.
type Credentials struct {
	Username string `json:"username" schema:"username"`
	Password string `json:"password" schema:"password"`
}

// NormalizeAuthorities sorts authorities and removes duplicates and empty entries.
// It never returns nil.
func NormalizeAuthorities(authorities []string) []string {
	out := make([]string, 0, len(authorities))
	for _, a := range authorities {
		if a != "" {
			out = append(out, a)
		}
	}

	slices.Sort(out)

	return slices.Compact(out)
}
