package authsession

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

// Manager owns the canonical AuthState. It is the only writer of that state
// and of the persisted session record.
//
// Concurrent SignIn calls are not cancelled or merged: the last call to
// settle decides the final state. Initialize and Refresh results are
// dropped when a SignIn or SignOut settled while they were in flight.
type Manager struct {
	verifier    CredentialVerifier
	revalidator SessionRevalidator
	store       Store
	profiles    ProfileUpdater
	passwords   PasswordChanger
	remote      RemoteSignOut

	logger      Logger
	activity    ActivitySink
	now         func() time.Time
	trustOnRead bool

	mu    sync.RWMutex
	state AuthState

	// commitMu serializes store access, state mutation and publishing.
	// epoch is guarded by it and bumps on every SignIn/SignOut settlement.
	commitMu sync.Mutex
	epoch    uint64
	subs     *registry

	initMu   sync.Mutex
	initCall *initCall

	background sync.WaitGroup
}

type initCall struct {
	done  chan struct{}
	state AuthState
}

// SignInResult is the outcome of SignIn
type SignInResult struct {
	Success bool
	User    *User
	Code    ErrorCode
	Error   string
	Err     error
}

// New returns a Manager in the uninitialized state
func New(cfg Config, opts ...Option) (*Manager, error) {
	switch {
	case cfg.Verifier == nil:
		return nil, oops.In(errorDomain).Errorf("credential verifier is required")
	case cfg.Revalidator == nil:
		return nil, oops.In(errorDomain).Errorf("session revalidator is required")
	case cfg.Store == nil:
		return nil, oops.In(errorDomain).Errorf("store is required")
	}

	m := &Manager{
		verifier:    cfg.Verifier,
		revalidator: cfg.Revalidator,
		store:       cfg.Store,
		logger:      NopLogger(),
		activity:    discardSink{},
		now:         time.Now,
		state:       initialState(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.subs = newRegistry(m.logger)

	return m, nil
}

// State returns a snapshot of the current state
func (m *Manager) State() AuthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Subscribe registers listener and delivers the current state to it. The
// snapshot is delivered before Subscribe returns unless another goroutine,
// or a listener further up the stack, is already delivering notifications;
// then it is queued and handed to the listener by that delivery loop once
// the earlier snapshots are out. The same holds for the notifications of
// SignIn, SignOut and the other state changes.
// The returned function removes exactly this listener.
// Listeners must not call Initialize.
func (m *Manager) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}

	m.commitMu.Lock()
	unsubscribe := m.subs.subscribe(listener, m.State())
	m.commitMu.Unlock()

	m.subs.drain()
	return unsubscribe
}

// Wait blocks until background revalidation has finished
func (m *Manager) Wait() {
	m.background.Wait()
}

// Initialize restores the persisted session. Only the first call does any
// work, later and concurrent calls get the same result.
func (m *Manager) Initialize(ctx context.Context) AuthState {
	m.initMu.Lock()
	if call := m.initCall; call != nil {
		m.initMu.Unlock()
		select {
		case <-call.done:
			return call.state.Clone()
		case <-ctx.Done():
			return m.State()
		}
	}
	call := &initCall{done: make(chan struct{})}
	m.initCall = call
	m.initMu.Unlock()

	call.state = m.initialize(ctx)
	close(call.done)
	return call.state.Clone()
}

func (m *Manager) initialize(ctx context.Context) AuthState {
	var epoch uint64
	m.commit(func(current AuthState) (AuthState, bool) {
		epoch = m.epoch
		return current.loading(StatusInitializing), true
	})

	raw, err := m.store.Get(ctx)
	if errors.Is(err, ErrNoRecord) {
		m.logger.Debug("initialize: no persisted session")
		return m.commitAt(epoch, func(AuthState) (AuthState, bool) {
			return unauthenticatedState(""), true
		})
	}
	if err != nil {
		m.logger.Error("initialize: read persisted session: %v", err)
		return m.commitAt(epoch, func(AuthState) (AuthState, bool) {
			return unauthenticatedState(CodeStorageError), true
		})
	}

	stored, err := DecodeRecord(raw)
	if err != nil {
		m.logger.Warn("initialize: discarding persisted session: %v", err)
		return m.discard(ctx, epoch, CodeMalformedPersistedSession, ActivityEventSessionDiscarded, "")
	}

	if !m.trustOnRead {
		return m.revalidate(ctx, epoch, stored, false)
	}

	// only active identities are ever persisted
	if !stored.IsActive {
		m.logger.Warn("initialize: discarding persisted session of inactive user %s", stored.ID)
		return m.discard(ctx, epoch, CodeMalformedPersistedSession, ActivityEventSessionDiscarded, stored.ID)
	}

	trusted := normalizeIdentity(stored, "")
	state := m.commitAt(epoch, func(AuthState) (AuthState, bool) {
		return authenticatedState(trusted), true
	})
	m.record(ctx, ActivityEvent{
		EventType: ActivityEventSessionRestored,
		UserID:    trusted.ID,
		Role:      trusted.Role,
		To:        StatusAuthenticated,
		Metadata:  map[string]any{"trusted": true},
	})

	m.background.Add(1)
	go func() {
		defer m.background.Done()
		m.revalidate(context.WithoutCancel(ctx), epoch, stored, true)
	}()

	return state
}

// Refresh revalidates the current session. Rejections sign the user out
// silently, an unreachable revalidator leaves the state unchanged.
func (m *Manager) Refresh(ctx context.Context) AuthState {
	m.commitMu.Lock()
	epoch := m.epoch
	m.commitMu.Unlock()

	current := m.State()
	if current.Status != StatusAuthenticated || current.User == nil {
		return current
	}
	return m.revalidate(ctx, epoch, current.User, true)
}

func (m *Manager) revalidate(ctx context.Context, epoch uint64, stored *User, keepOnUnreachable bool) AuthState {
	fresh, err := guard("revalidate", func() (*User, error) {
		return m.revalidator.Revalidate(ctx, stored.ID)
	})
	if err != nil {
		code := classify(err, CodeNetworkError)
		if code == CodeNetworkError {
			m.logger.Warn("revalidate %s: service unreachable: %v", stored.ID, err)
			if keepOnUnreachable {
				return m.State()
			}
			return m.commitAt(epoch, func(AuthState) (AuthState, bool) {
				return unauthenticatedState(CodeNetworkError), true
			})
		}
		m.logger.Info("revalidate %s: session rejected: %v", stored.ID, err)
		return m.discard(ctx, epoch, CodeStaleSession, ActivityEventSessionExpired, stored.ID)
	}

	user := normalizeIdentity(fresh, stored.Email)
	if user == nil || user.ID != stored.ID || !user.IsActive || ValidateUser(user) != nil {
		m.logger.Info("revalidate %s: identity no longer usable", stored.ID)
		return m.discard(ctx, epoch, CodeStaleSession, ActivityEventSessionExpired, stored.ID)
	}

	raw, err := EncodeRecord(user, m.now())
	if err != nil {
		return m.discard(ctx, epoch, CodeStaleSession, ActivityEventSessionExpired, stored.ID)
	}

	applied := false
	state := m.commitAt(epoch, func(AuthState) (AuthState, bool) {
		if err := m.store.Set(ctx, raw); err != nil {
			m.logger.Warn("revalidate %s: rewrite persisted session: %v", user.ID, err)
		}
		applied = true
		return authenticatedState(user), true
	})

	if applied {
		eventType := ActivityEventSessionRestored
		if keepOnUnreachable {
			eventType = ActivityEventSessionRefreshed
		}
		m.record(ctx, ActivityEvent{
			EventType: eventType,
			UserID:    user.ID,
			Role:      user.Role,
			To:        StatusAuthenticated,
		})
	}

	return state
}

// discard clears the persisted record and settles unauthenticated without
// surfacing an error.
func (m *Manager) discard(ctx context.Context, epoch uint64, code ErrorCode, eventType ActivityEventType, userID string) AuthState {
	applied := false
	state := m.commitAt(epoch, func(AuthState) (AuthState, bool) {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Error("clear persisted session: %v", err)
		}
		applied = true
		return unauthenticatedState(code), true
	})

	if applied {
		m.record(ctx, ActivityEvent{
			EventType: eventType,
			UserID:    userID,
			To:        StatusUnauthenticated,
			Code:      code,
		})
	}
	return state
}

// SignIn verifies the credentials and, on success, persists the session.
func (m *Manager) SignIn(ctx context.Context, identifier, secret string) SignInResult {
	if identifier == "" || secret == "" {
		return SignInResult{
			Code:  CodeMissingCredentials,
			Error: CodeMissingCredentials.Message(),
			Err:   newError(CodeMissingCredentials, nil),
		}
	}
	identifier = strings.ToLower(identifier)

	var from Status
	m.commit(func(current AuthState) (AuthState, bool) {
		from = current.Status
		return current.loading(StatusAuthenticating), true
	})

	identity, err := guard("verify credentials", func() (*User, error) {
		return m.verifier.VerifyCredentials(ctx, Credentials{Identifier: identifier, Secret: secret})
	})
	if err != nil {
		code := classify(err, CodeNetworkError)
		if code == CodeStaleSession || code == CodeMalformedPersistedSession {
			code = CodeInvalidCredentials
		}
		return m.failSignIn(ctx, from, identifier, code, err)
	}

	user := normalizeIdentity(identity, identifier)
	if err := ValidateUser(user); err != nil {
		return m.failSignIn(ctx, from, identifier, CodeInvalidIdentity, err)
	}
	if !user.IsActive {
		return m.failSignIn(ctx, from, identifier, CodeInactiveAccount, ErrInactiveAccount)
	}

	raw, err := EncodeRecord(user, m.now())
	if err != nil {
		return m.failSignIn(ctx, from, identifier, CodeInvalidIdentity, err)
	}

	var storeErr error
	m.commit(func(current AuthState) (AuthState, bool) {
		if storeErr = m.store.Set(ctx, raw); storeErr != nil {
			return current, false
		}
		m.epoch++
		return authenticatedState(user), true
	})
	if storeErr != nil {
		m.logger.Error("sign in %s: persist session: %v", user.ID, storeErr)
		return m.failSignIn(ctx, from, identifier, CodeStorageError, storeErr)
	}

	m.logger.Debug("sign in %s: authenticated as %s", user.ID, user.Role)
	m.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID,
		Role:      user.Role,
		From:      from,
		To:        StatusAuthenticated,
	})

	return SignInResult{Success: true, User: user.Clone()}
}

func (m *Manager) failSignIn(ctx context.Context, from Status, identifier string, code ErrorCode, cause error) SignInResult {
	m.commit(func(AuthState) (AuthState, bool) {
		m.epoch++
		return unauthenticatedState(code), true
	})

	m.logger.Info("sign in failed: %s: %v", code, cause)
	m.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		From:      from,
		To:        StatusUnauthenticated,
		Code:      code,
		Metadata:  map[string]any{"identifier": identifier},
	})

	return SignInResult{
		Code:  code,
		Error: code.Message(),
		Err:   newError(code, cause),
	}
}

// SignOut clears the persisted record and the in-memory identity. Local
// state is always cleared; the returned error only reports a store failure.
func (m *Manager) SignOut(ctx context.Context) error {
	var (
		userID string
		from   Status
	)
	m.commit(func(current AuthState) (AuthState, bool) {
		from = current.Status
		if current.User == nil {
			return current, false
		}
		userID = current.User.ID
		return current.loading(StatusSigningOut), true
	})

	if userID != "" && m.remote != nil {
		err := guardErr("remote sign out", func() error {
			return m.remote.SignOut(ctx, userID)
		})
		if err != nil {
			m.logger.Warn("sign out %s: remote sign out failed: %v", userID, err)
		}
	}

	var clearErr error
	m.commit(func(AuthState) (AuthState, bool) {
		clearErr = m.store.Clear(ctx)
		m.epoch++
		return unauthenticatedState(""), true
	})

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    userID,
		From:      from,
		To:        StatusUnauthenticated,
	})

	if clearErr != nil {
		m.logger.Error("sign out: clear persisted session: %v", clearErr)
		return newError(CodeStorageError, clearErr)
	}
	return nil
}

// UpdateProfile applies a profile change for the signed in user.
func (m *Manager) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	current, err := m.authenticatedUser()
	if err != nil {
		return nil, err
	}
	if m.profiles == nil {
		return nil, newErrorf(CodeUnsupported, nil, "profile updates are not configured")
	}
	if update.IsEmpty() {
		return current, nil
	}
	if err := update.Validate(); err != nil {
		return nil, newError(CodeInvalidProfile, err)
	}

	accepted, err := guard("update profile", func() (*User, error) {
		return m.profiles.UpdateProfile(ctx, current.ID, update)
	})
	if err != nil {
		return nil, newError(classify(err, CodeNetworkError), err)
	}

	user, err := m.commitUser(ctx, current.ID, func(base *User) *User {
		if accepted == nil {
			merged := update.Apply(base)
			merged.UpdatedAt = m.now()
			return merged
		}
		return mergeAccepted(base, normalizeIdentity(accepted, base.Email))
	})
	if err != nil {
		return nil, err
	}

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		UserID:    user.ID,
		Role:      user.Role,
		From:      StatusAuthenticated,
		To:        StatusAuthenticated,
	})
	return user, nil
}

// ChangePassword changes the password of the signed in user.
func (m *Manager) ChangePassword(ctx context.Context, current, next string) error {
	user, err := m.authenticatedUser()
	if err != nil {
		return err
	}
	if m.passwords == nil {
		return newErrorf(CodeUnsupported, nil, "password changes are not configured")
	}
	if current == "" || next == "" {
		return newErrorf(CodeMissingCredentials, nil, "current and new password are required")
	}

	accepted, err := guard("change password", func() (*User, error) {
		return m.passwords.ChangePassword(ctx, user.ID, current, next)
	})
	if err != nil {
		return newError(classify(err, CodeNetworkError), err)
	}

	updated, err := m.commitUser(ctx, user.ID, func(base *User) *User {
		if accepted == nil {
			merged := base.Clone()
			merged.UpdatedAt = m.now()
			return merged
		}
		return mergeAccepted(base, normalizeIdentity(accepted, base.Email))
	})
	if err != nil {
		return err
	}

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		UserID:    updated.ID,
		Role:      updated.Role,
		From:      StatusAuthenticated,
		To:        StatusAuthenticated,
	})
	return nil
}

func (m *Manager) authenticatedUser() (*User, error) {
	st := m.State()
	if st.Status != StatusAuthenticated || st.User == nil {
		return nil, newError(CodeNotAuthenticated, nil)
	}
	return st.User, nil
}

// commitUser rewrites the persisted record with merge(current user) and
// re-notifies subscribers. The state stays authenticated.
func (m *Manager) commitUser(ctx context.Context, userID string, merge func(base *User) *User) (*User, error) {
	var (
		opErr  error
		merged *User
	)
	m.commit(func(current AuthState) (AuthState, bool) {
		if current.Status != StatusAuthenticated || current.User == nil || current.User.ID != userID {
			opErr = newError(CodeNotAuthenticated, nil)
			return current, false
		}

		merged = merge(current.User)
		raw, err := EncodeRecord(merged, m.now())
		if err != nil {
			opErr = newError(CodeInvalidIdentity, err)
			return current, false
		}
		if err := m.store.Set(ctx, raw); err != nil {
			opErr = newError(CodeStorageError, err)
			return current, false
		}

		next := current
		next.User = merged
		return next, true
	})
	if opErr != nil {
		return nil, opErr
	}
	return merged.Clone(), nil
}

// commit runs mutate under the commit lock. mutate may touch the store and
// returns the next state; returning false leaves the state untouched.
// Subscribers are notified after the lock is released.
func (m *Manager) commit(mutate func(current AuthState) (AuthState, bool)) AuthState {
	m.commitMu.Lock()

	m.mu.RLock()
	current := m.state.Clone()
	m.mu.RUnlock()

	if next, ok := mutate(current); ok {
		m.mu.Lock()
		m.state = next
		m.mu.Unlock()
		m.logger.Debug("state %s -> %s (authenticated=%t loading=%t)", current.Status, next.Status, next.IsAuthenticated, next.IsLoading)
		m.subs.publish(next.Clone())
	}

	result := m.State()
	m.commitMu.Unlock()

	m.subs.drain()
	return result
}

// commitAt is commit guarded by epoch: when a SignIn or SignOut settled
// since epoch was read, mutate is skipped.
func (m *Manager) commitAt(epoch uint64, mutate func(current AuthState) (AuthState, bool)) AuthState {
	return m.commit(func(current AuthState) (AuthState, bool) {
		if m.epoch != epoch {
			m.logger.Debug("dropping stale result (epoch %d, now %d)", epoch, m.epoch)
			return current, false
		}
		return mutate(current)
	})
}

func (m *Manager) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}
	if err := m.activity.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink error: %v", err)
	}
}

// guard runs a collaborator call converting panics into errors
func guard[T any](operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Operation: operation, Value: r}
		}
	}()
	return fn()
}

func guardErr(operation string, fn func() error) error {
	_, err := guard(operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
