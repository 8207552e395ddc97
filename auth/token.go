package auth

import (
	"time"
)

// TokenKind tells access and refresh tokens apart.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Valid reports whether k is a known token kind.
func (k TokenKind) Valid() bool {
	return k == AccessToken || k == RefreshToken
}

// Claims are the fields carried by a signed token.
//
// Refresh tokens carry no authorities: they are resolved from the user store at refresh time.
type Claims struct {
	ID          string
	Subject     string
	Authorities []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Kind        TokenKind
}

// HasAuthority reports whether the claims carry authority.
func (c Claims) HasAuthority(authority string) bool {
	for _, a := range c.Authorities {
		if a == authority {
			return true
		}
	}

	return false
}

// TokenPair is returned by successful authentication and refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenCodec signs and parses tokens.
//
// Parse returns ErrInvalidToken if the token cannot be trusted
// and ErrExpiredToken if it is trusted but used at or past its expiry.
type TokenCodec interface {
	Issue(claims Claims) (string, error)
	Parse(token string) (Claims, error)
}
