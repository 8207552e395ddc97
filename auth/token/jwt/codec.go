// Package jwt implements auth.TokenCodec with signed JSON Web Tokens.
package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"

	"github.com/identitykit/auth/auth"
)

type claims struct {
	jwt.RegisteredClaims

	Authorities []string       `json:"authorities,omitempty"`
	Kind        auth.TokenKind `json:"kind"`
}

// Codec signs and parses tokens with a single signing key.
type Codec struct {
	key    SigningKey
	issuer string

	clock       Clock
	idGenerator IDGenerator

	parser *jwt.Parser
}

// NewCodec returns a new Codec.
func NewCodec(key SigningKey, opts ...Option) (Codec, error) {
	if key.method == nil {
		return Codec{}, errors.New("jwt: signing key is required")
	}

	c := Codec{
		key: key,
	}

	for _, opt := range opts {
		opt.applyCodec(&c)
	}

	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}

	if c.idGenerator == nil {
		c.idGenerator = uuidGenerator{}
	}

	// time based claims are checked against the codec clock in Parse
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{key.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	return c, nil
}

// Issue implements the auth.TokenCodec interface.
//
// Tokens issued without an ID get one from the ID generator.
// Authorities are dropped from refresh tokens.
func (c Codec) Issue(tokenClaims auth.Claims) (string, error) {
	if tokenClaims.Subject == "" {
		return "", errors.New("jwt: subject is required")
	}

	if !tokenClaims.Kind.Valid() {
		return "", fmt.Errorf("jwt: unknown token kind %q", tokenClaims.Kind)
	}

	if !tokenClaims.ExpiresAt.After(tokenClaims.IssuedAt) {
		return "", errors.New("jwt: expiry must be after issued at")
	}

	id := tokenClaims.ID
	if id == "" {
		var err error

		id, err = c.idGenerator.GenerateID()
		if err != nil {
			return "", fmt.Errorf("jwt: generate token id: %w", err)
		}
	}

	var authorities []string
	if tokenClaims.Kind == auth.AccessToken {
		authorities = tokenClaims.Authorities
	}

	token := jwt.NewWithClaims(c.key.method, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   tokenClaims.Subject,
			ExpiresAt: jwt.NewNumericDate(tokenClaims.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(tokenClaims.IssuedAt),
			ID:        id,
		},
		Authorities: authorities,
		Kind:        tokenClaims.Kind,
	})

	if c.key.keyID != "" {
		token.Header["kid"] = c.key.keyID
	}

	signedToken, err := token.SignedString(c.key.signKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signedToken, nil
}

// Parse implements the auth.TokenCodec interface.
func (c Codec) Parse(token string) (auth.Claims, error) {
	var parsed claims

	_, err := c.parser.ParseWithClaims(token, &parsed, func(*jwt.Token) (interface{}, error) {
		return c.key.verifyKey, nil
	})
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	switch {
	case parsed.Subject == "":
		return auth.Claims{}, fmt.Errorf("%w: missing subject", auth.ErrInvalidToken)
	case !parsed.Kind.Valid():
		return auth.Claims{}, fmt.Errorf("%w: unknown token kind", auth.ErrInvalidToken)
	case parsed.IssuedAt == nil || parsed.ExpiresAt == nil:
		return auth.Claims{}, fmt.Errorf("%w: missing timestamps", auth.ErrInvalidToken)
	case parsed.Issuer != c.issuer:
		return auth.Claims{}, fmt.Errorf("%w: unexpected issuer", auth.ErrInvalidToken)
	}

	if !c.clock.Now().Before(parsed.ExpiresAt.Time) {
		return auth.Claims{}, auth.ErrExpiredToken
	}

	authorities := parsed.Authorities
	if parsed.Kind == auth.AccessToken {
		authorities = auth.NormalizeAuthorities(authorities)
	}

	return auth.Claims{
		ID:          parsed.ID,
		Subject:     parsed.Subject,
		Authorities: authorities,
		IssuedAt:    parsed.IssuedAt.Time.UTC(),
		ExpiresAt:   parsed.ExpiresAt.Time.UTC(),
		Kind:        parsed.Kind,
	}, nil
}
