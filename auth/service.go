package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Default token lifetimes and store timeout.
const (
	DefaultAccessTokenLifetime  = 15 * time.Minute
	DefaultRefreshTokenLifetime = 7 * 24 * time.Hour
	DefaultStoreTimeout         = 5 * time.Second
)

// AccountService is the set of operations exposed to callers.
type AccountService interface {
	// Register validates and persists a new account.
	Register(ctx context.Context, r RegistrationRequest) (AccountView, error)

	// Authenticate exchanges credentials for a token pair.
	Authenticate(ctx context.Context, c Credentials) (TokenPair, error)

	// Refresh exchanges a refresh token for a new token pair.
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)

	// VerifyAccessToken parses an access token and checks the required authorities.
	VerifyAccessToken(ctx context.Context, accessToken string, authorities ...string) (Claims, error)
}

// Service implements AccountService.
type Service struct {
	Authenticator PasswordAuthenticator
	Users         UserStore
	Roles         RoleStore
	Validator     Validator
	Hasher        PasswordHasher
	Tokens        TokenCodec

	// Clock is used for token timestamps. Defaults to the real clock.
	Clock clockwork.Clock

	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration

	// DefaultRole is assigned to new accounts. Defaults to DefaultRole.
	DefaultRole string

	// StrictDefaultRole makes registration fail when the default role does not exist.
	// Otherwise the account is created without roles.
	StrictDefaultRole bool

	// StoreTimeout bounds every store call. Defaults to DefaultStoreTimeout.
	StoreTimeout time.Duration

	Logger *zap.Logger
}

// Register implements AccountService.
func (s Service) Register(ctx context.Context, r RegistrationRequest) (AccountView, error) {
	if violations := s.Validator.Validate(r); len(violations) > 0 {
		return AccountView{}, &ValidationError{Violations: violations}
	}

	roles, err := s.defaultRoles(ctx)
	if err != nil {
		return AccountView{}, err
	}

	passwordHash, err := s.Hasher.Hash(r.Password)
	if err != nil {
		return AccountView{}, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return AccountView{}, fmt.Errorf("generate account id: %w", err)
	}

	account := Account{
		ID:           id.String(),
		Username:     r.Username,
		PasswordHash: passwordHash,
		Email:        r.Email,
		Roles:        roles,
		CreatedAt:    s.now(),
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	saved, err := s.Users.Save(storeCtx, account)
	if err != nil {
		s.logger().Info("registration failed", zap.String("username", r.Username), zap.Error(err))

		return AccountView{}, &RegistrationError{Err: err}
	}

	s.logger().Info("account registered", zap.String("username", saved.Username))

	return saved.View(), nil
}

func (s Service) defaultRoles(ctx context.Context) ([]Role, error) {
	name := s.DefaultRole
	if name == "" {
		name = DefaultRole
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	role, err := s.Roles.FindByName(storeCtx, name)
	if errors.Is(err, ErrRoleNotFound) {
		if s.StrictDefaultRole {
			return nil, &RegistrationError{Err: fmt.Errorf("default role %q: %w", name, err)}
		}

		s.logger().Warn("default role not found, registering account without roles", zap.String("role", name))

		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "find role", Err: err}
	}

	return []Role{role}, nil
}

// Authenticate implements AccountService.
func (s Service) Authenticate(ctx context.Context, c Credentials) (TokenPair, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	account, err := s.Authenticator.Authenticate(storeCtx, c.Username, c.Password)
	if errors.Is(err, ErrBadCredentials) {
		s.logger().Debug("authentication failed", zap.String("username", c.Username))

		return TokenPair{}, ErrBadCredentials
	}
	if err != nil {
		return TokenPair{}, &StoreError{Op: "find account", Err: err}
	}

	pair, err := s.issuePair(account)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger().Debug("client authenticated", zap.String("username", account.Username))

	return pair, nil
}

// Refresh implements AccountService.
//
// Authorities are re-loaded from the user store rather than taken from the token.
func (s Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.Tokens.Parse(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	if claims.Kind != RefreshToken {
		return TokenPair{}, fmt.Errorf("%w: %s token cannot be used for refresh", ErrInvalidToken, claims.Kind)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	account, err := s.Users.FindByUsername(storeCtx, claims.Subject)
	if errors.Is(err, ErrAccountNotFound) {
		return TokenPair{}, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
	}
	if err != nil {
		return TokenPair{}, &StoreError{Op: "find account", Err: err}
	}

	pair, err := s.issuePair(account)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger().Debug("token refreshed", zap.String("username", account.Username))

	return pair, nil
}

// VerifyAccessToken implements AccountService.
func (s Service) VerifyAccessToken(_ context.Context, accessToken string, authorities ...string) (Claims, error) {
	claims, err := s.Tokens.Parse(accessToken)
	if err != nil {
		return Claims{}, err
	}

	if err := Authorize(claims, authorities...); err != nil {
		return Claims{}, err
	}

	return claims, nil
}

func (s Service) issuePair(account Account) (TokenPair, error) {
	now := s.now()

	access := Claims{
		Subject:     account.Username,
		Authorities: account.Authorities(),
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.accessTokenLifetime()),
		Kind:        AccessToken,
	}

	refresh := Claims{
		Subject:   account.Username,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTokenLifetime()),
		Kind:      RefreshToken,
	}

	accessToken, err := s.Tokens.Issue(access)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := s.Tokens.Issue(refresh)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// now is truncated to the precision of token timestamps.
func (s Service) now() time.Time {
	clock := s.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return clock.Now().UTC().Truncate(time.Second)
}

func (s Service) accessTokenLifetime() time.Duration {
	if s.AccessTokenLifetime <= 0 {
		return DefaultAccessTokenLifetime
	}

	return s.AccessTokenLifetime
}

func (s Service) refreshTokenLifetime() time.Duration {
	if s.RefreshTokenLifetime <= 0 {
		return DefaultRefreshTokenLifetime
	}

	return s.RefreshTokenLifetime
}

func (s Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}

	return context.WithTimeout(ctx, timeout)
}

func (s Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}

	return s.Logger
}
