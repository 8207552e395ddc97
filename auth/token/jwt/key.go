package jwt

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/docker/libtrust"
	"github.com/golang-jwt/jwt/v4"
)

// SigningKey is the process-wide key tokens are signed and verified with.
type SigningKey struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	keyID     string
}

// Algorithm returns the JWS algorithm of the key.
func (k SigningKey) Algorithm() string {
	if k.method == nil {
		return ""
	}

	return k.method.Alg()
}

// KeyID returns the key ID written to the "kid" header, if any.
func (k SigningKey) KeyID() string {
	return k.keyID
}

// HMACKey returns a symmetric HS256 signing key.
func HMACKey(secret []byte) (SigningKey, error) {
	if len(secret) == 0 {
		return SigningKey{}, errors.New("jwt: signing secret is empty")
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	return SigningKey{
		method:    jwt.SigningMethodHS256,
		signKey:   key,
		verifyKey: key,
	}, nil
}

// TrustKey returns an asymmetric signing key backed by a libtrust private key.
// RSA keys sign with RS256, EC keys with the ES algorithm matching their curve.
func TrustKey(privateKey libtrust.PrivateKey) (SigningKey, error) {
	method, err := detectSigningMethod(privateKey)
	if err != nil {
		return SigningKey{}, err
	}

	return SigningKey{
		method:    method,
		signKey:   privateKey.CryptoPrivateKey(),
		verifyKey: privateKey.PublicKey().CryptoPublicKey(),
		keyID:     privateKey.KeyID(),
	}, nil
}

// LoadTrustKey loads a PEM or JWK encoded private key file.
func LoadTrustKey(path string) (SigningKey, error) {
	privateKey, err := libtrust.LoadKeyFile(path)
	if err != nil {
		return SigningKey{}, fmt.Errorf("jwt: load key file %s: %w", path, err)
	}

	return TrustKey(privateKey)
}

func detectSigningMethod(privateKey libtrust.PrivateKey) (jwt.SigningMethod, error) {
	switch privateKey.KeyType() {
	case "RSA":
		return jwt.SigningMethodRS256, nil
	case "EC":
		ecKey, ok := privateKey.CryptoPrivateKey().(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("jwt: unexpected EC key implementation %T", privateKey.CryptoPrivateKey())
		}

		switch ecKey.Curve.Params().BitSize {
		case 256:
			return jwt.SigningMethodES256, nil
		case 384:
			return jwt.SigningMethodES384, nil
		case 521:
			return jwt.SigningMethodES512, nil
		}

		return nil, fmt.Errorf("jwt: unsupported EC curve %s", ecKey.Curve.Params().Name)
	default:
		return nil, fmt.Errorf("jwt: unsupported signing key type %q", privateKey.KeyType())
	}
}
