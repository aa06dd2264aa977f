package authsession

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// ErrorCode identifies a failure in the session taxonomy
type ErrorCode string

const (
	CodeInvalidCredentials        ErrorCode = "INVALID_CREDENTIALS"
	CodeInactiveAccount           ErrorCode = "INACTIVE_ACCOUNT"
	CodeNetworkError              ErrorCode = "NETWORK_ERROR"
	CodeMalformedPersistedSession ErrorCode = "MALFORMED_PERSISTED_SESSION"
	CodeStaleSession              ErrorCode = "STALE_SESSION"
	CodeNotAuthenticated          ErrorCode = "NOT_AUTHENTICATED"
	CodeMissingCredentials        ErrorCode = "MISSING_CREDENTIALS"
	CodeInvalidIdentity           ErrorCode = "INVALID_IDENTITY"
	CodeInvalidProfile            ErrorCode = "INVALID_PROFILE"
	CodeStorageError              ErrorCode = "STORAGE_ERROR"
	CodeUnsupported               ErrorCode = "UNSUPPORTED_OPERATION"
	CodeUpdateRejected            ErrorCode = "UPDATE_REJECTED"
)

const errorDomain = "authsession"

var codeMessages = map[ErrorCode]string{
	CodeInvalidCredentials:        "Invalid email or password",
	CodeInactiveAccount:           "Your account has been deactivated. Please contact your administrator",
	CodeNetworkError:              "Unable to reach the authentication service. Please try again",
	CodeMalformedPersistedSession: "Stored session could not be read",
	CodeStaleSession:              "Your session has expired. Please sign in again",
	CodeNotAuthenticated:          "You must be signed in to perform this action",
	CodeMissingCredentials:        "Email and password are required",
	CodeInvalidIdentity:           "The authentication service returned an invalid account",
	CodeInvalidProfile:            "The profile update is invalid",
	CodeStorageError:              "Unable to save your session on this device",
	CodeUnsupported:               "This operation is not supported",
	CodeUpdateRejected:            "The update was rejected",
}

// Message returns the user facing message for the code
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return string(c)
}

// Surfaced reports whether a failure with this code is shown to the user
// through AuthState.Error. Routine expiry is recovered silently.
func (c ErrorCode) Surfaced() bool {
	switch c {
	case "", CodeMalformedPersistedSession, CodeStaleSession:
		return false
	default:
		return true
	}
}

// Collaborator failure reasons. Verifiers, revalidators and updaters return
// (or wrap) these, any other error is treated as the service being unreachable.
var (
	// ErrInvalidCredentials identifier and secret do not match
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount the account exists but is deactivated
	ErrInactiveAccount = errors.New("inactive account")
	// ErrSessionRejected a previously trusted identity is no longer valid
	ErrSessionRejected = errors.New("session rejected")
	// ErrUpdateRejected the backend refused a profile or password change
	ErrUpdateRejected = errors.New("update rejected")
	// ErrNoRecord the store holds no persisted session
	ErrNoRecord = errors.New("no persisted session record")
)

// CodeOf returns the taxonomy code carried by err, or an empty code when
// err is nil. Collaborator sentinels are mapped to their matching code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := fmt.Sprint(oopsErr.Code()); code != "" && code != "<nil>" {
			return ErrorCode(code)
		}
	}
	return classify(err, CodeNetworkError)
}

// classify maps collaborator errors onto the taxonomy, using fallback for
// errors that carry no known reason.
func classify(err error, fallback ErrorCode) ErrorCode {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrInactiveAccount):
		return CodeInactiveAccount
	case errors.Is(err, ErrSessionRejected):
		return CodeStaleSession
	case errors.Is(err, ErrUpdateRejected):
		return CodeUpdateRejected
	case errors.Is(err, ErrNoRecord):
		return CodeMalformedPersistedSession
	default:
		return fallback
	}
}

func newError(code ErrorCode, cause error) error {
	builder := oops.Code(string(code)).In(errorDomain)
	if cause == nil {
		return builder.Errorf("%s", code.Message())
	}
	return builder.Wrapf(cause, "%s", code.Message())
}

func newErrorf(code ErrorCode, cause error, format string, args ...any) error {
	builder := oops.Code(string(code)).In(errorDomain)
	if cause == nil {
		return builder.Errorf(format, args...)
	}
	return builder.Wrapf(cause, format, args...)
}

// PanicError is produced when a collaborator panics during a call
type PanicError struct {
	Operation string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Operation, e.Value)
}
