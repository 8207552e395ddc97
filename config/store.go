package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"gopkg.in/yaml.v3"

	"github.com/identitykit/auth/auth"
	"github.com/identitykit/auth/auth/store/memory"
	"github.com/identitykit/auth/auth/store/postgres"
)

var (
	storeFactoriesMu sync.RWMutex
	storeFactories   = make(map[string]StoreFactory)
)

// RegisterStoreFactory makes a StoreFactory available by the provided name in configuration.
//
// If RegisterStoreFactory is called twice with the same name or if factory is nil,
// it panics.
func RegisterStoreFactory(name string, factory StoreFactory) {
	storeFactoriesMu.Lock()
	defer storeFactoriesMu.Unlock()

	if factory == nil {
		panic("registering store factory: factory is nil")
	}

	if _, dup := storeFactories[name]; dup {
		panic("registering store factory: registration called twice for factory " + name)
	}

	storeFactories[name] = factory
}

func init() {
	RegisterStoreFactory("memory", &memoryStore{})
	RegisterStoreFactory("postgres", &postgresStore{})
}

// Store is the configuration for the user and role stores.
type Store struct {
	Type   string `yaml:"type"`
	Config StoreFactory
}

func (c *Store) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig rawConfig

	err := value.Decode(&rawConfig)
	if err != nil {
		return err
	}

	storeFactoriesMu.RLock()
	factory, ok := storeFactories[rawConfig.Type]
	storeFactoriesMu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown store type: %s", rawConfig.Type)
	}

	factory = factory.New()

	err = decode(rawConfig.Config, factory)
	if err != nil {
		return err
	}

	c.Type = rawConfig.Type
	c.Config = factory

	return nil
}

// Stores are the stores created by a StoreFactory.
type Stores struct {
	Users auth.UserStore
	Roles auth.RoleStore

	// Close releases the underlying resources.
	Close func() error
}

// StoreFactory creates the user and role stores.
//
// New must return a pointer that configuration can be decoded into.
type StoreFactory interface {
	New() StoreFactory
	CreateStores(ctx context.Context) (Stores, error)
	Validate() error
}

type memoryStore struct {
	Roles []string     `mapstructure:"roles"`
	Users []memoryUser `mapstructure:"users"`
}

type memoryUser struct {
	Username     string   `mapstructure:"username"`
	PasswordHash string   `mapstructure:"passwordHash"`
	Email        string   `mapstructure:"email"`
	Roles        []string `mapstructure:"roles"`
}

func (c *memoryStore) New() StoreFactory {
	return &memoryStore{}
}

func (c *memoryStore) CreateStores(ctx context.Context) (Stores, error) {
	store := memory.NewStore(c.Roles...)

	for _, u := range c.Users {
		roles := make([]auth.Role, 0, len(u.Roles))
		for _, name := range u.Roles {
			roles = append(roles, store.AddRole(name))
		}

		_, err := store.Save(ctx, auth.Account{
			ID:           uuid.Must(uuid.NewV4()).String(),
			Username:     u.Username,
			PasswordHash: []byte(u.PasswordHash),
			Email:        u.Email,
			Roles:        roles,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return Stores{}, fmt.Errorf("store: memory: seed user %s: %w", u.Username, err)
		}
	}

	return Stores{
		Users: store,
		Roles: store,
		Close: func() error { return nil },
	}, nil
}

func (c *memoryStore) Validate() error {
	for i, u := range c.Users {
		if u.Username == "" {
			return fmt.Errorf("store: memory: users[%d]: username is required", i)
		}

		if u.PasswordHash == "" {
			return fmt.Errorf("store: memory: users[%d]: passwordHash is required", i)
		}
	}

	return nil
}

type postgresStore struct {
	DSN             string        `mapstructure:"dsn"`
	Migrate         bool          `mapstructure:"migrate"`
	Roles           []string      `mapstructure:"roles"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

func (c *postgresStore) New() StoreFactory {
	return &postgresStore{}
}

func (c *postgresStore) CreateStores(ctx context.Context) (Stores, error) {
	db, err := postgres.Open(ctx, c.DSN, postgres.PoolOptions{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	})
	if err != nil {
		return Stores{}, err
	}

	if c.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()

			return Stores{}, err
		}
	}

	store := postgres.NewStore(db)

	for _, name := range c.Roles {
		if err := store.EnsureRole(ctx, name); err != nil {
			db.Close()

			return Stores{}, err
		}
	}

	return Stores{
		Users: store,
		Roles: store,
		Close: db.Close,
	}, nil
}

func (c *postgresStore) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("store: postgres: dsn is required")
	}

	return nil
}
