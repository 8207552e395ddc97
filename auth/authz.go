package auth

import (
	"fmt"
)

// Authorize checks that the claims belong to an access token carrying every required authority.
//
// It returns ErrInvalidToken for refresh tokens and ErrForbidden for missing authorities.
func Authorize(claims Claims, required ...string) error {
	if claims.Kind != AccessToken {
		return fmt.Errorf("%w: %s token cannot be used for authorization", ErrInvalidToken, claims.Kind)
	}

	for _, authority := range required {
		if !claims.HasAuthority(authority) {
			return fmt.Errorf("%w: missing authority %q", ErrForbidden, authority)
		}
	}

	return nil
}
