package authsession_test

import (
	"errors"
	"fmt"
	"testing"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	_, decodeErr := authsession.DecodeRecord([]byte("{"))

	tests := []struct {
		name     string
		err      error
		expected authsession.ErrorCode
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "wrapped invalid credentials",
			err:      fmt.Errorf("verify: %w", authsession.ErrInvalidCredentials),
			expected: authsession.CodeInvalidCredentials,
		},
		{
			name:     "inactive account",
			err:      authsession.ErrInactiveAccount,
			expected: authsession.CodeInactiveAccount,
		},
		{
			name:     "session rejected",
			err:      authsession.ErrSessionRejected,
			expected: authsession.CodeStaleSession,
		},
		{
			name:     "update rejected",
			err:      authsession.ErrUpdateRejected,
			expected: authsession.CodeUpdateRejected,
		},
		{
			name:     "coded error from decode",
			err:      decodeErr,
			expected: authsession.CodeMalformedPersistedSession,
		},
		{
			name:     "unknown error is a network failure",
			err:      errors.New("connection reset by peer"),
			expected: authsession.CodeNetworkError,
		},
		{
			name:     "collaborator panic",
			err:      &authsession.PanicError{Operation: "verify credentials", Value: "boom"},
			expected: authsession.CodeNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, authsession.CodeOf(tt.err))
		})
	}
}

func TestErrorCodeMessages(t *testing.T) {
	assert.Equal(t, "Invalid email or password", authsession.CodeInvalidCredentials.Message())
	assert.Equal(t, "SOMETHING_NEW", authsession.ErrorCode("SOMETHING_NEW").Message())

	for _, code := range []authsession.ErrorCode{
		authsession.CodeInvalidCredentials,
		authsession.CodeInactiveAccount,
		authsession.CodeNetworkError,
		authsession.CodeStorageError,
	} {
		assert.True(t, code.Surfaced(), code)
	}
	assert.False(t, authsession.CodeStaleSession.Surfaced())
	assert.False(t, authsession.CodeMalformedPersistedSession.Surfaced())
}

func TestPanicErrorMessage(t *testing.T) {
	err := &authsession.PanicError{Operation: "revalidate", Value: "nil map"}
	assert.Equal(t, "revalidate panicked: nil map", err.Error())
}
