package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/config"
	"github.com/goliatone/go-auth-session/internal/sqlite"
	"github.com/goliatone/go-auth-session/store"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/uptrace/bun"
)

const (
	sqliteFile = "session.db"
	saltFile   = "session.salt"
)

// stores opens the configured backend once and hands out one Store per
// namespace on top of it
type stores struct {
	cfg   config.StoreConfig
	db    *bun.DB
	redis *redis.Client
	key   []byte
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	s := &stores{cfg: cfg.Store}

	switch cfg.Store.Kind {
	case config.StoreMemory:
	case config.StoreFile:
		if err := os.MkdirAll(cfg.Store.Dir, 0o700); err != nil {
			return nil, oops.In("cli").With("dir", cfg.Store.Dir).Wrapf(err, "create store directory")
		}
	case config.StoreSQLite:
		if err := os.MkdirAll(cfg.Store.Dir, 0o700); err != nil {
			return nil, oops.In("cli").With("dir", cfg.Store.Dir).Wrapf(err, "create store directory")
		}
		db, err := sqlite.Open("file:"+filepath.Join(cfg.Store.Dir, sqliteFile), sqlite.Options{})
		if err != nil {
			return nil, err
		}
		s.db = db
	case config.StoreRedis:
		client, err := store.ConnectRedis(ctx, store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			return nil, err
		}
		s.redis = client
	default:
		return nil, oops.In("cli").With("kind", cfg.Store.Kind).Errorf("unknown store kind")
	}

	if cfg.Store.Passphrase != "" {
		key, err := sealingKey(cfg.Store)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.key = key
	}

	return s, nil
}

// open returns the store for namespace, encrypted when a passphrase is set
func (s *stores) open(ctx context.Context, namespace string) (authsession.Store, error) {
	var st authsession.Store

	switch s.cfg.Kind {
	case config.StoreMemory:
		st = store.NewMemory()
	case config.StoreFile:
		st = store.NewFile(filepath.Join(s.cfg.Dir, namespace+".json"))
	case config.StoreSQLite:
		sqlStore := store.NewSQL(s.db, store.WithNamespace(namespace))
		if err := sqlStore.Migrate(ctx); err != nil {
			return nil, err
		}
		st = sqlStore
	case config.StoreRedis:
		st = store.NewRedis(s.redis, store.WithNamespace(namespace), store.WithTTL(s.cfg.TTL))
	}

	if s.key == nil {
		return st, nil
	}
	return store.NewEncrypted(st, s.key)
}

func (s *stores) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

// sealingKey derives the record key from the passphrase and a random salt
// kept next to the other store files
func sealingKey(cfg config.StoreConfig) ([]byte, error) {
	if cfg.Dir == "" {
		return nil, oops.In("cli").Errorf("store dir is required to keep the encryption salt")
	}
	path := filepath.Join(cfg.Dir, saltFile)

	salt, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if salt, err = store.NewSalt(); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
			return nil, oops.In("cli").With("dir", cfg.Dir).Wrapf(err, "create store directory")
		}
		if err := os.WriteFile(path, salt, 0o600); err != nil {
			return nil, oops.In("cli").With("path", path).Wrapf(err, "write salt")
		}
	} else if err != nil {
		return nil, oops.In("cli").With("path", path).Wrapf(err, "read salt")
	}

	return store.DeriveKey(cfg.Passphrase, salt)
}
