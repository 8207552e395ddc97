package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/identitykit/auth/auth"
)

func TestRegistrationValidator(t *testing.T) {
	validator := NewRegistrationValidator()

	t.Run("OK", func(t *testing.T) {
		violations := validator.Validate(auth.RegistrationRequest{
			Username: "alice",
			Password: "Secr3t!",
			Email:    "a@x.com",
		})

		assert.Empty(t, violations)
	})

	t.Run("Blank", func(t *testing.T) {
		violations := validator.Validate(auth.RegistrationRequest{})

		assert.Equal(t, []auth.Violation{
			{Field: "username", Message: "must not be blank"},
			{Field: "password", Message: "must not be blank"},
			{Field: "email", Message: "must not be blank"},
		}, violations)
	})

	tests := map[string]struct {
		request auth.RegistrationRequest
		field   string
	}{
		"ShortUsername": {
			request: auth.RegistrationRequest{Username: "al", Password: "Secr3t!", Email: "a@x.com"},
			field:   "username",
		},
		"UsernameCharacters": {
			request: auth.RegistrationRequest{Username: "alice smith", Password: "Secr3t!", Email: "a@x.com"},
			field:   "username",
		},
		"ShortPassword": {
			request: auth.RegistrationRequest{Username: "alice", Password: "abc", Email: "a@x.com"},
			field:   "password",
		},
		"LongPassword": {
			request: auth.RegistrationRequest{Username: "alice", Password: strings.Repeat("x", 73), Email: "a@x.com"},
			field:   "password",
		},
		"Email": {
			request: auth.RegistrationRequest{Username: "alice", Password: "Secr3t!", Email: "not an email"},
			field:   "email",
		},
		"EmailWithName": {
			request: auth.RegistrationRequest{Username: "alice", Password: "Secr3t!", Email: "Alice <a@x.com>"},
			field:   "email",
		},
	}

	for name, test := range tests {
		test := test

		t.Run(name, func(t *testing.T) {
			violations := validator.Validate(test.request)

			if assert.Len(t, violations, 1) {
				assert.Equal(t, test.field, violations[0].Field)
				assert.NotEmpty(t, violations[0].Message)
			}
		})
	}
}
