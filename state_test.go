package authsession_test

import (
	"context"
	"errors"
	"testing"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
)

func TestAuthStateConsistent(t *testing.T) {
	user := staffIdentity()

	assert.True(t, authsession.AuthState{Status: authsession.StatusUnauthenticated}.Consistent())
	assert.True(t, authsession.AuthState{Status: authsession.StatusAuthenticated, User: user, IsAuthenticated: true}.Consistent())
	assert.False(t, authsession.AuthState{Status: authsession.StatusAuthenticated, IsAuthenticated: true}.Consistent())
	assert.False(t, authsession.AuthState{Status: authsession.StatusUnauthenticated, User: user}.Consistent())
	assert.True(t, authsession.AuthState{Status: authsession.StatusAuthenticating, IsLoading: true, User: user}.Consistent())
}

func TestAuthStateClone(t *testing.T) {
	st := authsession.AuthState{Status: authsession.StatusAuthenticated, User: staffIdentity(), IsAuthenticated: true}
	c := st.Clone()
	c.User.FullName = "changed"

	assert.Equal(t, "Sam Staff", st.User.FullName)
}

func TestStatusIsTransient(t *testing.T) {
	for _, s := range []authsession.Status{
		authsession.StatusInitializing,
		authsession.StatusAuthenticating,
		authsession.StatusSigningOut,
	} {
		assert.True(t, s.IsTransient(), s)
	}
	for _, s := range []authsession.Status{
		authsession.StatusUninitialized,
		authsession.StatusAuthenticated,
		authsession.StatusUnauthenticated,
	} {
		assert.False(t, s.IsTransient(), s)
	}
}

func TestMultiSink(t *testing.T) {
	first := &activityLog{}
	failing := authsession.ActivitySinkFunc(func(context.Context, authsession.ActivityEvent) error {
		return errors.New("sink down")
	})
	last := &activityLog{}

	sink := authsession.MultiSink{first, nil, failing, last}
	err := sink.Record(context.Background(), authsession.ActivityEvent{EventType: authsession.ActivityEventLogout})

	assert.EqualError(t, err, "sink down")
	assert.Len(t, first.types(), 1)
	assert.Len(t, last.types(), 1)
}
