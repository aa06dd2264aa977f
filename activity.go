package authsession

import (
	"context"
	"time"
)

// ActivityEventType names a session audit event.
type ActivityEventType string

const (
	ActivityEventLoginSuccess     ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure     ActivityEventType = "auth.login.failure"
	ActivityEventLogout           ActivityEventType = "auth.logout"
	ActivityEventSessionRestored  ActivityEventType = "session.restored"
	ActivityEventSessionExpired   ActivityEventType = "session.expired"
	ActivityEventSessionDiscarded ActivityEventType = "session.discarded"
	ActivityEventSessionRefreshed ActivityEventType = "session.refreshed"
	ActivityEventProfileUpdated   ActivityEventType = "profile.updated"
	ActivityEventPasswordChanged  ActivityEventType = "auth.password.changed"
)

// ActivityEvent describes one session transition worth auditing. From and To
// are the statuses on either side of the commit; Code is set on failures.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Role       Role
	From       Status
	To         Status
	Code       ErrorCode
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives activity events. Errors are logged by the Manager and
// otherwise ignored.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiSink fans an event out to every sink, returning the first error
type MultiSink []ActivitySink

// Record implements ActivitySink.
func (m MultiSink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type discardSink struct{}

func (discardSink) Record(context.Context, ActivityEvent) error { return nil }

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return discardSink{}
	}
	return s
}
