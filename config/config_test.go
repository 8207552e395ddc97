package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/identitykit/auth/auth"
)

const validConfig = `
hasher:
  type: bcrypt
  config:
    cost: 4

tokenCodec:
  type: jwt
  config:
    issuer: auth.example.com
    secret: 0123456789abcdef0123456789abcdef
    accessTokenLifetime: 10m
    refreshTokenLifetime: 12h

store:
  type: memory
  config:
    roles: [ROLE_USER]
    users:
      - username: admin
        passwordHash: $2a$04$e3KTxjQ2Ki0VBbbcGpH3Y.7kVIUb5mNIqDc3sNKgHVMFPF8Em9AVW
        email: admin@example.com
        roles: [ROLE_ADMIN]

registration:
  defaultRole: ROLE_USER
  strictDefaultRole: true

storeTimeout: 3s
`

func TestParse(t *testing.T) {
	config, err := Parse([]byte(validConfig))
	require.NoError(t, err)

	assert.Equal(t, "bcrypt", config.Hasher.Type)
	assert.Equal(t, bcryptHasher{Cost: 4}, config.Hasher.Config)

	assert.Equal(t, jwtTokenCodec{
		Issuer:               "auth.example.com",
		Secret:               "0123456789abcdef0123456789abcdef",
		AccessTokenLifetime:  10 * time.Minute,
		RefreshTokenLifetime: 12 * time.Hour,
	}, config.TokenCodec.Config)

	assert.Equal(t, "memory", config.Store.Type)
	assert.Equal(t, Registration{DefaultRole: "ROLE_USER", StrictDefaultRole: true}, config.Registration)
	assert.Equal(t, 3*time.Second, config.StoreTimeout)

	t.Run("CreateComponents", func(t *testing.T) {
		hasher, err := config.Hasher.Config.CreateHasher()
		require.NoError(t, err)

		stores, err := config.Store.Config.CreateStores(context.Background())
		require.NoError(t, err)
		defer stores.Close()

		role, err := stores.Roles.FindByName(context.Background(), "ROLE_ADMIN")
		require.NoError(t, err)
		assert.Equal(t, "ROLE_ADMIN", role.Name)

		admin, err := stores.Users.FindByUsername(context.Background(), "admin")
		require.NoError(t, err)
		assert.Equal(t, []string{"ROLE_ADMIN"}, admin.Authorities())
		assert.NotEmpty(t, admin.ID)

		codec, err := config.TokenCodec.Config.CreateTokenCodec(clockwork.NewRealClock())
		require.NoError(t, err)

		access, _ := config.TokenCodec.Config.Lifetimes()
		now := time.Now().UTC().Truncate(time.Second)

		token, err := codec.Issue(auth.Claims{
			Subject:   "admin",
			IssuedAt:  now,
			ExpiresAt: now.Add(access),
			Kind:      auth.AccessToken,
		})
		require.NoError(t, err)

		claims, err := codec.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Subject)

		passwordHash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword(passwordHash, []byte("password")))
	})
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"MissingHasher": `
tokenCodec: {type: jwt, config: {secret: 0123456789abcdef0123456789abcdef}}
store: {type: memory}
`,
		"UnknownHasher": `
hasher: {type: argon2}
tokenCodec: {type: jwt, config: {secret: 0123456789abcdef0123456789abcdef}}
store: {type: memory}
`,
		"BcryptCost": `
hasher: {type: bcrypt, config: {cost: 99}}
tokenCodec: {type: jwt, config: {secret: 0123456789abcdef0123456789abcdef}}
store: {type: memory}
`,
		"ShortSecret": `
hasher: {type: bcrypt}
tokenCodec: {type: jwt, config: {secret: short}}
store: {type: memory}
`,
		"NoKey": `
hasher: {type: bcrypt}
tokenCodec: {type: jwt, config: {issuer: auth.example.com}}
store: {type: memory}
`,
		"AccessNotShorter": `
hasher: {type: bcrypt}
tokenCodec: {type: jwt, config: {secret: 0123456789abcdef0123456789abcdef, accessTokenLifetime: 1h, refreshTokenLifetime: 1h}}
store: {type: memory}
`,
		"UnknownField": `
hasher: {type: bcrypt, config: {rounds: 10}}
tokenCodec: {type: jwt, config: {secret: 0123456789abcdef0123456789abcdef}}
store: {type: memory}
`,
		"UnknownStore": `
hasher: {type: bcrypt}
tokenCodec: {type: jwt, config: {secret: 0123456789abcdef0123456789abcdef}}
store: {type: mongo}
`,
		"PostgresWithoutDSN": `
hasher: {type: bcrypt}
tokenCodec: {type: jwt, config: {secret: 0123456789abcdef0123456789abcdef}}
store: {type: postgres, config: {migrate: true}}
`,
		"MemoryUserWithoutHash": `
hasher: {type: bcrypt}
tokenCodec: {type: jwt, config: {secret: 0123456789abcdef0123456789abcdef}}
store: {type: memory, config: {users: [{username: admin}]}}
`,
	}

	for name, content := range tests {
		content := content

		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content))

			assert.Error(t, err)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	config, err := Parse([]byte(`
hasher: {type: bcrypt}
tokenCodec: {type: jwt, config: {secret: 0123456789abcdef0123456789abcdef}}
store: {type: postgres, config: {dsn: "postgres://localhost/auth", migrate: true, connMaxLifetime: 5m}}
`))
	require.NoError(t, err)

	access, refresh := config.TokenCodec.Config.Lifetimes()
	assert.Equal(t, auth.DefaultAccessTokenLifetime, access)
	assert.Equal(t, auth.DefaultRefreshTokenLifetime, refresh)

	assert.Equal(t, &postgresStore{DSN: "postgres://localhost/auth", Migrate: true, ConnMaxLifetime: 5 * time.Minute}, config.Store.Config)
}

func TestLoad(t *testing.T) {
	t.Setenv("AUTH_TOKEN_SECRET", "fedcba9876543210fedcba9876543210")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hasher: {type: bcrypt}
tokenCodec: {type: jwt, config: {secret: "${AUTH_TOKEN_SECRET}"}}
store: {type: memory, config: {users: [{username: admin, passwordHash: "$2a$04$abc"}]}}
`), 0o600))

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fedcba9876543210fedcba9876543210", config.TokenCodec.Config.(jwtTokenCodec).Secret)
	assert.Equal(t, "$2a$04$abc", config.Store.Config.(*memoryStore).Users[0].PasswordHash)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRegisterStoreFactory(t *testing.T) {
	assert.Panics(t, func() {
		RegisterStoreFactory("memory", &memoryStore{})
	})

	assert.Panics(t, func() {
		RegisterStoreFactory("nil", nil)
	})
}
