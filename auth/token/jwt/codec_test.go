package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/docker/libtrust"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identitykit/auth/auth"
)

type idGeneratorStub struct {
	id string
}

func (g idGeneratorStub) GenerateID() (string, error) {
	return g.id, nil
}

const testSecret = "0123456789abcdef0123456789abcdef"

var now = time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

func newTestCodec(t *testing.T, clock Clock, opts ...Option) Codec {
	t.Helper()

	key, err := HMACKey([]byte(testSecret))
	require.NoError(t, err)

	codec, err := NewCodec(key, append([]Option{WithClock(clock), WithIssuer("issuer.example.com")}, opts...)...)
	require.NoError(t, err)

	return codec
}

func accessClaims() auth.Claims {
	return auth.Claims{
		ID:          "vb86v87g87g87g87bb897vcw2367fv723vc8236",
		Subject:     "alice",
		Authorities: []string{"ROLE_ADMIN", "ROLE_USER"},
		IssuedAt:    now,
		ExpiresAt:   now.Add(15 * time.Minute),
		Kind:        auth.AccessToken,
	}
}

// tamper flips a character inside the signature segment.
func tamper(token string) string {
	b := []byte(token)
	i := strings.LastIndex(token, ".") + 5

	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}

	return string(b)
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Run("HMAC", func(t *testing.T) {
		codec := newTestCodec(t, clockwork.NewFakeClockAt(now))

		token, err := codec.Issue(accessClaims())
		require.NoError(t, err)

		parsed, err := codec.Parse(token)
		require.NoError(t, err)

		assert.Equal(t, accessClaims(), parsed)
	})

	t.Run("EC", func(t *testing.T) {
		privateKey, err := libtrust.GenerateECP256PrivateKey()
		require.NoError(t, err)

		key, err := TrustKey(privateKey)
		require.NoError(t, err)
		assert.Equal(t, "ES256", key.Algorithm())
		assert.Equal(t, privateKey.KeyID(), key.KeyID())

		codec, err := NewCodec(key, WithClock(clockwork.NewFakeClockAt(now)))
		require.NoError(t, err)

		token, err := codec.Issue(accessClaims())
		require.NoError(t, err)

		header := decodeSegment(t, token, 0)
		assert.Equal(t, privateKey.KeyID(), header["kid"])

		parsed, err := codec.Parse(token)
		require.NoError(t, err)

		assert.Equal(t, accessClaims(), parsed)
	})

	t.Run("RSA", func(t *testing.T) {
		privateKey, err := libtrust.GenerateRSA2048PrivateKey()
		require.NoError(t, err)

		key, err := TrustKey(privateKey)
		require.NoError(t, err)
		assert.Equal(t, "RS256", key.Algorithm())

		codec, err := NewCodec(key, WithClock(clockwork.NewFakeClockAt(now)))
		require.NoError(t, err)

		token, err := codec.Issue(accessClaims())
		require.NoError(t, err)

		parsed, err := codec.Parse(token)
		require.NoError(t, err)

		assert.Equal(t, accessClaims(), parsed)
	})

	t.Run("NoAuthorities", func(t *testing.T) {
		codec := newTestCodec(t, clockwork.NewFakeClockAt(now))

		claims := accessClaims()
		claims.Authorities = auth.Account{}.Authorities()

		token, err := codec.Issue(claims)
		require.NoError(t, err)

		parsed, err := codec.Parse(token)
		require.NoError(t, err)

		assert.Equal(t, claims, parsed)
		assert.Equal(t, []string{}, parsed.Authorities)
	})

	t.Run("Refresh", func(t *testing.T) {
		codec := newTestCodec(t, clockwork.NewFakeClockAt(now))

		claims := accessClaims()
		claims.Authorities = nil
		claims.Kind = auth.RefreshToken

		token, err := codec.Issue(claims)
		require.NoError(t, err)

		parsed, err := codec.Parse(token)
		require.NoError(t, err)

		assert.Equal(t, claims, parsed)
	})
}

func TestCodec_Issue(t *testing.T) {
	codec := newTestCodec(t, clockwork.NewFakeClockAt(now), WithIDGenerator(idGeneratorStub{"generated"}))

	t.Run("GeneratedID", func(t *testing.T) {
		claims := accessClaims()
		claims.ID = ""

		token, err := codec.Issue(claims)
		require.NoError(t, err)

		parsed, err := codec.Parse(token)
		require.NoError(t, err)

		assert.Equal(t, "generated", parsed.ID)
	})

	t.Run("RefreshCarriesNoAuthorities", func(t *testing.T) {
		claims := accessClaims()
		claims.Kind = auth.RefreshToken

		token, err := codec.Issue(claims)
		require.NoError(t, err)

		payload := decodeSegment(t, token, 1)
		assert.NotContains(t, payload, "authorities")
		assert.Equal(t, "refresh", payload["kind"])

		parsed, err := codec.Parse(token)
		require.NoError(t, err)

		assert.Empty(t, parsed.Authorities)
		assert.Equal(t, "alice", parsed.Subject)
	})

	t.Run("Invalid", func(t *testing.T) {
		noSubject := accessClaims()
		noSubject.Subject = ""

		noKind := accessClaims()
		noKind.Kind = ""

		backwards := accessClaims()
		backwards.ExpiresAt = backwards.IssuedAt

		for name, claims := range map[string]auth.Claims{"NoSubject": noSubject, "NoKind": noKind, "Backwards": backwards} {
			_, err := codec.Issue(claims)
			assert.Error(t, err, name)
		}
	})
}

func TestCodec_Parse(t *testing.T) {
	t.Run("TamperedSignature", func(t *testing.T) {
		codec := newTestCodec(t, clockwork.NewFakeClockAt(now))

		token, err := codec.Issue(accessClaims())
		require.NoError(t, err)

		_, err = codec.Parse(tamper(token))

		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		codec := newTestCodec(t, clockwork.NewFakeClockAt(now))

		token, err := codec.Issue(accessClaims())
		require.NoError(t, err)

		segments := strings.Split(token, ".")
		payload := decodeSegment(t, token, 1)
		payload["authorities"] = []string{"ROLE_ADMIN", "ROLE_ROOT", "ROLE_USER"}

		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		segments[1] = base64.RawURLEncoding.EncodeToString(raw)

		_, err = codec.Parse(strings.Join(segments, "."))

		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(now)
		codec := newTestCodec(t, clock)

		token, err := codec.Issue(accessClaims())
		require.NoError(t, err)

		clock.Advance(15 * time.Minute)

		_, err = codec.Parse(token)

		assert.ErrorIs(t, err, auth.ErrExpiredToken)
		assert.NotErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("ExpiredAndTampered", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(now)
		codec := newTestCodec(t, clock)

		token, err := codec.Issue(accessClaims())
		require.NoError(t, err)

		clock.Advance(time.Hour)

		_, err = codec.Parse(tamper(token))

		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("WrongKey", func(t *testing.T) {
		codec := newTestCodec(t, clockwork.NewFakeClockAt(now))

		otherKey, err := HMACKey([]byte("another secret of at least 32 bytes"))
		require.NoError(t, err)

		other, err := NewCodec(otherKey, WithClock(clockwork.NewFakeClockAt(now)), WithIssuer("issuer.example.com"))
		require.NoError(t, err)

		token, err := other.Issue(accessClaims())
		require.NoError(t, err)

		_, err = codec.Parse(token)

		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		codec := newTestCodec(t, clockwork.NewFakeClockAt(now))
		other := newTestCodec(t, clockwork.NewFakeClockAt(now), WithIssuer("other.example.com"))

		token, err := other.Issue(accessClaims())
		require.NoError(t, err)

		_, err = codec.Parse(token)

		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		codec := newTestCodec(t, clockwork.NewFakeClockAt(now))

		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "issuer.example.com",
				Subject:   "alice",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			Kind: auth.AccessToken,
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = codec.Parse(token)

		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		codec := newTestCodec(t, clockwork.NewFakeClockAt(now))

		for _, token := range []string{"", "not-a-token", "a.b.c"} {
			_, err := codec.Parse(token)

			assert.ErrorIs(t, err, auth.ErrInvalidToken, token)
		}
	})
}

func TestHMACKey(t *testing.T) {
	_, err := HMACKey(nil)
	assert.Error(t, err)

	_, err = NewCodec(SigningKey{})
	assert.Error(t, err)
}

func decodeSegment(t *testing.T, token string, i int) map[string]interface{} {
	t.Helper()

	segments := strings.Split(token, ".")
	require.Len(t, segments, 3)

	raw, err := base64.RawURLEncoding.DecodeString(segments[i])
	require.NoError(t, err)

	var v map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &v))

	return v
}
