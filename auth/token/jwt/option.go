package jwt

import (
	"time"

	"github.com/gofrs/uuid"
)

// Clock provides the current time.
// It is satisfied by clockwork.Clock.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique token IDs ("jti" claim).
type IDGenerator interface {
	GenerateID() (string, error)
}

type uuidGenerator struct{}

func (uuidGenerator) GenerateID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// Option configures a Codec.
type Option interface {
	applyCodec(c *Codec)
}

type optionFunc func(c *Codec)

func (fn optionFunc) applyCodec(c *Codec) {
	fn(c)
}

// WithClock sets the clock used for token expiry checks.
func WithClock(clock Clock) Option {
	return optionFunc(func(c *Codec) {
		c.clock = clock
	})
}

// WithIDGenerator sets the generator used for tokens issued without an ID.
func WithIDGenerator(idGenerator IDGenerator) Option {
	return optionFunc(func(c *Codec) {
		c.idGenerator = idGenerator
	})
}

// WithIssuer sets the "iss" claim of issued tokens. Parsed tokens must carry the same issuer.
func WithIssuer(issuer string) Option {
	return optionFunc(func(c *Codec) {
		c.issuer = issuer
	})
}
