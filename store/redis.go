package store

import (
	"context"
	"errors"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const defaultRedisTimeout = 5 * time.Second

// RedisConfig captures the settings for establishing a Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// ConnectRedis initialises a Redis client and validates connectivity with
// a ping. A default timeout is applied when none is provided.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.In("store").With("addr", cfg.Addr).Wrapf(err, "redis ping")
	}

	return client, nil
}

// Redis keeps the record under a single key. With WithTTL the record
// expires on the server and Get reports ErrNoRecord afterwards.
type Redis struct {
	client redis.UniversalClient
	opts   options
}

var _ authsession.Store = (*Redis)(nil)

// NewRedis wraps client
func NewRedis(client redis.UniversalClient, opts ...Option) *Redis {
	return &Redis{client: client, opts: buildOptions(opts...)}
}

// Key returns the redis key in use
func (r *Redis) Key() string {
	return r.opts.namespace
}

// Get implements authsession.Store
func (r *Redis) Get(ctx context.Context) ([]byte, error) {
	raw, err := r.client.Get(ctx, r.opts.namespace).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, authsession.ErrNoRecord
	}
	if err != nil {
		return nil, oops.In("store").With("key", r.opts.namespace).Wrapf(err, "redis get")
	}
	if len(raw) == 0 {
		return nil, authsession.ErrNoRecord
	}
	return raw, nil
}

// Set implements authsession.Store
func (r *Redis) Set(ctx context.Context, record []byte) error {
	if err := r.client.Set(ctx, r.opts.namespace, record, r.opts.ttl).Err(); err != nil {
		return oops.In("store").With("key", r.opts.namespace).Wrapf(err, "redis set")
	}
	return nil
}

// Clear implements authsession.Store
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.opts.namespace).Err(); err != nil {
		return oops.In("store").With("key", r.opts.namespace).Wrapf(err, "redis del")
	}
	return nil
}
