package authsession

import "context"

// Logger is the optional observer used for diagnostics
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Credentials is the input handed to a CredentialVerifier
type Credentials struct {
	Identifier string
	Secret     string
}

// CredentialVerifier confirms an identifier/secret pair against the
// identity backend. It returns ErrInvalidCredentials or ErrInactiveAccount
// for rejections; any other error means the backend was unreachable.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, creds Credentials) (*User, error)
}

// SessionRevalidator confirms a previously trusted identity is still valid
// and returns a fresh snapshot of it. Rejections return ErrSessionRejected.
type SessionRevalidator interface {
	Revalidate(ctx context.Context, userID string) (*User, error)
}

// ProfileUpdater applies profile changes on the backend and returns the
// accepted identity. A nil user means the update was accepted as sent.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*User, error)
}

// PasswordChanger changes the password of a signed in user. The current
// password mismatch is reported with ErrInvalidCredentials.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, userID, current, next string) (*User, error)
}

// RemoteSignOut notifies the backend that a session ended. Failures are
// logged, the local sign out is authoritative.
type RemoteSignOut interface {
	SignOut(ctx context.Context, userID string) error
}

// Store is the persistence port holding exactly one serialized session
// record. Get returns ErrNoRecord when nothing is stored.
type Store interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, record []byte) error
	Clear(ctx context.Context) error
}

// CredentialVerifierFunc adapts a function to the CredentialVerifier interface.
type CredentialVerifierFunc func(ctx context.Context, creds Credentials) (*User, error)

// VerifyCredentials implements CredentialVerifier.
func (f CredentialVerifierFunc) VerifyCredentials(ctx context.Context, creds Credentials) (*User, error) {
	return f(ctx, creds)
}

// SessionRevalidatorFunc adapts a function to the SessionRevalidator interface.
type SessionRevalidatorFunc func(ctx context.Context, userID string) (*User, error)

// Revalidate implements SessionRevalidator.
func (f SessionRevalidatorFunc) Revalidate(ctx context.Context, userID string) (*User, error) {
	return f(ctx, userID)
}

// ProfileUpdaterFunc adapts a function to the ProfileUpdater interface.
type ProfileUpdaterFunc func(ctx context.Context, userID string, update ProfileUpdate) (*User, error)

// UpdateProfile implements ProfileUpdater.
func (f ProfileUpdaterFunc) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	return f(ctx, userID, update)
}

// PasswordChangerFunc adapts a function to the PasswordChanger interface.
type PasswordChangerFunc func(ctx context.Context, userID, current, next string) (*User, error)

// ChangePassword implements PasswordChanger.
func (f PasswordChangerFunc) ChangePassword(ctx context.Context, userID, current, next string) (*User, error) {
	return f(ctx, userID, current, next)
}

// RemoteSignOutFunc adapts a function to the RemoteSignOut interface.
type RemoteSignOutFunc func(ctx context.Context, userID string) error

// SignOut implements RemoteSignOut.
func (f RemoteSignOutFunc) SignOut(ctx context.Context, userID string) error {
	if f == nil {
		return nil
	}
	return f(ctx, userID)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything
func NopLogger() Logger {
	return nopLogger{}
}
