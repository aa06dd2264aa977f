package authsession

import "time"

// Config holds the collaborators a Manager cannot work without
type Config struct {
	Verifier    CredentialVerifier
	Revalidator SessionRevalidator
	Store       Store
}

// Option customizes Manager construction.
type Option func(*Manager)

// WithLogger sets the diagnostics observer. Defaults to a no-op logger.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish session events.
func WithActivitySink(sink ActivitySink) Option {
	return func(m *Manager) {
		m.activity = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithProfileUpdater enables UpdateProfile.
func WithProfileUpdater(updater ProfileUpdater) Option {
	return func(m *Manager) {
		m.profiles = updater
	}
}

// WithPasswordChanger enables ChangePassword.
func WithPasswordChanger(changer PasswordChanger) Option {
	return func(m *Manager) {
		m.passwords = changer
	}
}

// WithRemoteSignOut notifies the backend on SignOut.
func WithRemoteSignOut(remote RemoteSignOut) Option {
	return func(m *Manager) {
		m.remote = remote
	}
}

// WithTrustOnRead makes Initialize trust the persisted record right away
// and revalidate it in the background. Use Wait to join the revalidation.
// Revoked accounts stay signed in until the background check settles.
func WithTrustOnRead() Option {
	return func(m *Manager) {
		m.trustOnRead = true
	}
}
