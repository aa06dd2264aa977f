package store

import (
	"time"

	authsession "github.com/goliatone/go-auth-session"
)

// Option customizes keyed stores (sql, redis).
type Option func(*options)

type options struct {
	namespace string
	ttl       time.Duration
	now       func() time.Time
}

func buildOptions(opts ...Option) options {
	o := options{
		namespace: authsession.DefaultNamespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithNamespace overrides the key the record is stored under.
func WithNamespace(namespace string) Option {
	return func(o *options) {
		if namespace != "" {
			o.namespace = namespace
		}
	}
}

// WithTTL expires the record after ttl. Only honored by Redis.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.now = clock
		}
	}
}
