package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/identitykit/auth/auth"
	"github.com/identitykit/auth/auth/token/jwt"
)

const minSecretLength = 32

// TokenCodec is the configuration for an auth.TokenCodec.
type TokenCodec struct {
	Type   string `yaml:"type"`
	Config TokenCodecFactory
}

func (c *TokenCodec) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig rawConfig

	err := value.Decode(&rawConfig)
	if err != nil {
		return err
	}

	var config TokenCodecFactory

	switch rawConfig.Type {
	case "jwt":
		var factory jwtTokenCodec

		err := decode(rawConfig.Config, &factory)
		if err != nil {
			return err
		}

		config = factory

	default:
		return fmt.Errorf("unknown token codec type: %s", rawConfig.Type)
	}

	c.Type = rawConfig.Type
	c.Config = config

	return nil
}

// TokenCodecFactory creates a new auth.TokenCodec.
type TokenCodecFactory interface {
	CreateTokenCodec(clock jwt.Clock) (auth.TokenCodec, error)

	// Lifetimes returns the access and refresh token lifetimes.
	Lifetimes() (time.Duration, time.Duration)

	Validate() error
}

type jwtTokenCodec struct {
	Issuer               string        `mapstructure:"issuer"`
	Secret               string        `mapstructure:"secret"`
	PrivateKeyFile       string        `mapstructure:"privateKeyFile"`
	AccessTokenLifetime  time.Duration `mapstructure:"accessTokenLifetime"`
	RefreshTokenLifetime time.Duration `mapstructure:"refreshTokenLifetime"`
}

func (c jwtTokenCodec) CreateTokenCodec(clock jwt.Clock) (auth.TokenCodec, error) {
	var (
		key jwt.SigningKey
		err error
	)

	if c.PrivateKeyFile != "" {
		key, err = jwt.LoadTrustKey(c.PrivateKeyFile)
	} else {
		key, err = jwt.HMACKey([]byte(c.Secret))
	}
	if err != nil {
		return nil, err
	}

	return jwt.NewCodec(key, jwt.WithIssuer(c.Issuer), jwt.WithClock(clock))
}

func (c jwtTokenCodec) Lifetimes() (time.Duration, time.Duration) {
	access := c.AccessTokenLifetime
	if access == 0 {
		access = auth.DefaultAccessTokenLifetime
	}

	refresh := c.RefreshTokenLifetime
	if refresh == 0 {
		refresh = auth.DefaultRefreshTokenLifetime
	}

	return access, refresh
}

func (c jwtTokenCodec) Validate() error {
	if c.Secret == "" && c.PrivateKeyFile == "" {
		return fmt.Errorf("token codec: jwt: secret or privateKeyFile is required")
	}

	if c.Secret != "" && c.PrivateKeyFile != "" {
		return fmt.Errorf("token codec: jwt: secret and privateKeyFile are mutually exclusive")
	}

	if c.Secret != "" && len(c.Secret) < minSecretLength {
		return fmt.Errorf("token codec: jwt: secret must be at least %d bytes long", minSecretLength)
	}

	if c.AccessTokenLifetime < 0 || c.RefreshTokenLifetime < 0 {
		return fmt.Errorf("token codec: jwt: token lifetimes must be positive")
	}

	access, refresh := c.Lifetimes()
	if access >= refresh {
		return fmt.Errorf("token codec: jwt: accessTokenLifetime (%s) must be shorter than refreshTokenLifetime (%s)", access, refresh)
	}

	return nil
}
