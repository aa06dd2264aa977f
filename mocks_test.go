package authsession_test

import (
	"context"
	"sync"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/mock"
)

// MockVerifier implements authsession.CredentialVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyCredentials(ctx context.Context, creds authsession.Credentials) (*authsession.User, error) {
	args := m.Called(ctx, creds)
	user, _ := args.Get(0).(*authsession.User)
	return user, args.Error(1)
}

// MockRevalidator implements authsession.SessionRevalidator
type MockRevalidator struct {
	mock.Mock
}

func (m *MockRevalidator) Revalidate(ctx context.Context, userID string) (*authsession.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*authsession.User)
	return user, args.Error(1)
}

// MockProfileUpdater implements authsession.ProfileUpdater
type MockProfileUpdater struct {
	mock.Mock
}

func (m *MockProfileUpdater) UpdateProfile(ctx context.Context, userID string, update authsession.ProfileUpdate) (*authsession.User, error) {
	args := m.Called(ctx, userID, update)
	user, _ := args.Get(0).(*authsession.User)
	return user, args.Error(1)
}

// MockPasswordChanger implements authsession.PasswordChanger
type MockPasswordChanger struct {
	mock.Mock
}

func (m *MockPasswordChanger) ChangePassword(ctx context.Context, userID, current, next string) (*authsession.User, error) {
	args := m.Called(ctx, userID, current, next)
	user, _ := args.Get(0).(*authsession.User)
	return user, args.Error(1)
}

// MockStore implements authsession.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	raw, _ := args.Get(0).([]byte)
	return raw, args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, record []byte) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockLogger implements authsession.Logger
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// recorder collects every snapshot delivered to it
type recorder struct {
	mu     sync.Mutex
	states []authsession.AuthState
}

func (r *recorder) listen(state authsession.AuthState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) all() []authsession.AuthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]authsession.AuthState, len(r.states))
	copy(out, r.states)
	return out
}

func (r *recorder) statuses() []authsession.Status {
	states := r.all()
	out := make([]authsession.Status, 0, len(states))
	for _, s := range states {
		out = append(out, s.Status)
	}
	return out
}

// activityLog implements authsession.ActivitySink
type activityLog struct {
	mu     sync.Mutex
	events []authsession.ActivityEvent
}

func (a *activityLog) Record(_ context.Context, event authsession.ActivityEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *activityLog) types() []authsession.ActivityEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]authsession.ActivityEventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.EventType)
	}
	return out
}
