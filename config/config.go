package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config collects all configuration options.
type Config struct {
	Hasher       Hasher        `yaml:"hasher"`
	TokenCodec   TokenCodec    `yaml:"tokenCodec"`
	Store        Store         `yaml:"store"`
	Registration Registration  `yaml:"registration"`
	StoreTimeout time.Duration `yaml:"storeTimeout"`
	Sentry       Sentry        `yaml:"sentry"`
}

// Registration configures account registration.
type Registration struct {
	DefaultRole       string `yaml:"defaultRole"`
	StrictDefaultRole bool   `yaml:"strictDefaultRole"`
}

// Sentry configures error reporting. An empty DSN disables it.
type Sentry struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Load reads a YAML configuration file, expanding ${VAR} references from the environment.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return Parse(expandEnv(content))
}

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references only. Bare $ sequences, as found in bcrypt hashes, are kept.
func expandEnv(content []byte) []byte {
	return envReference.ReplaceAllFunc(content, func(ref []byte) []byte {
		return []byte(os.Getenv(string(envReference.FindSubmatch(ref)[1])))
	})
}

// Parse decodes and validates a YAML configuration.
func Parse(content []byte) (Config, error) {
	var config Config

	if err := yaml.Unmarshal(content, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Hasher.Type == "" {
		return fmt.Errorf("hasher type is required")
	}

	if err := c.Hasher.Config.Validate(); err != nil {
		return err
	}

	if c.TokenCodec.Type == "" {
		return fmt.Errorf("token codec type is required")
	}

	if err := c.TokenCodec.Config.Validate(); err != nil {
		return err
	}

	if c.Store.Type == "" {
		return fmt.Errorf("store type is required")
	}

	if err := c.Store.Config.Validate(); err != nil {
		return err
	}

	if c.StoreTimeout < 0 {
		return fmt.Errorf("storeTimeout must not be negative")
	}

	return nil
}

// rawConfig is a general struct to be used by other config structs to unmarshal yaml config first.
type rawConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

func decode(input interface{}, output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      output,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}
