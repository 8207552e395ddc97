package config

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/identitykit/auth/auth"
	"github.com/identitykit/auth/auth/authn"
)

// Hasher is the configuration for an auth.PasswordHasher.
type Hasher struct {
	Type   string `yaml:"type"`
	Config HasherFactory
}

func (c *Hasher) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig rawConfig

	err := value.Decode(&rawConfig)
	if err != nil {
		return err
	}

	var config HasherFactory

	switch rawConfig.Type {
	case "bcrypt":
		var factory bcryptHasher

		err := decode(rawConfig.Config, &factory)
		if err != nil {
			return err
		}

		config = factory
	default:
		return fmt.Errorf("unknown hasher type: %s", rawConfig.Type)
	}

	c.Type = rawConfig.Type
	c.Config = config

	return nil
}

// HasherFactory creates a new auth.PasswordHasher.
type HasherFactory interface {
	CreateHasher() (auth.PasswordHasher, error)
	Validate() error
}

type bcryptHasher struct {
	Cost int `mapstructure:"cost"`
}

func (c bcryptHasher) CreateHasher() (auth.PasswordHasher, error) {
	return authn.NewBcryptHasher(c.Cost)
}

func (c bcryptHasher) Validate() error {
	if c.Cost == 0 {
		return nil
	}

	if c.Cost < bcrypt.MinCost || c.Cost > bcrypt.MaxCost {
		return fmt.Errorf("hasher: bcrypt: cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	return nil
}
