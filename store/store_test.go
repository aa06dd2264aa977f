package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/internal/sqlite"
	"github.com/goliatone/go-auth-session/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the contract every backend must honor
func exerciseStore(t *testing.T, s authsession.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, authsession.ErrNoRecord)

	require.NoError(t, s.Set(ctx, []byte(`{"v":1}`)))
	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))

	require.NoError(t, s.Set(ctx, []byte(`{"v":2}`)))
	got, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))

	require.NoError(t, s.Clear(ctx))
	_, err = s.Get(ctx)
	require.ErrorIs(t, err, authsession.ErrNoRecord)

	// clearing an empty store is not an error
	require.NoError(t, s.Clear(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, store.NewMemory())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	input := []byte("abc")
	require.NoError(t, s.Set(ctx, input))
	input[0] = 'x'

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[0] = 'y'
	again, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, s.Writes())
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, store.NewFile(filepath.Join(t.TempDir(), "nested", "session.json")))
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := store.NewFile(path)
	require.NoError(t, s.Set(context.Background(), []byte("payload")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, path, s.Path())
}

func TestFileStoreEmptyFileIsNoRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := store.NewFile(path).Get(context.Background())
	assert.ErrorIs(t, err, authsession.ErrNoRecord)
}

func setupSQLStore(t *testing.T, opts ...store.Option) *store.SQL {
	t.Helper()
	db, err := sqlite.Open(sqlite.MemoryDSN, sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := store.NewSQL(db, opts...)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLStore(t *testing.T) {
	exerciseStore(t, setupSQLStore(t))
}

func TestSQLStoreMigrateIsIdempotent(t *testing.T) {
	s := setupSQLStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestSQLStoreNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(sqlite.MemoryDSN, sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	a := store.NewSQL(db, store.WithNamespace("device.a"), store.WithClock(func() time.Time { return fixed }))
	b := store.NewSQL(db, store.WithNamespace("device.b"))
	require.NoError(t, a.Migrate(ctx))

	require.NoError(t, a.Set(ctx, []byte("alpha")))
	_, err = b.Get(ctx)
	assert.ErrorIs(t, err, authsession.ErrNoRecord)

	require.NoError(t, b.Set(ctx, []byte("beta")))
	require.NoError(t, b.Clear(ctx))

	got, err := a.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))
}

func testKey(t *testing.T) []byte {
	t.Helper()
	salt := []byte("0123456789abcdef")
	key, err := store.DeriveKey("correct horse battery staple", salt)
	require.NoError(t, err)
	return key
}

func TestEncryptedStore(t *testing.T) {
	s, err := store.NewEncrypted(store.NewMemory(), testKey(t))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestEncryptedStoreSealsPayload(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemory()
	s, err := store.NewEncrypted(inner, testKey(t))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, []byte(`{"email":"admin@x.com"}`)))

	sealed, err := inner.Get(ctx)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "admin@x.com")

	plain, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"email":"admin@x.com"}`, string(plain))
}

func TestEncryptedStoreWrongKey(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemory()

	writer, err := store.NewEncrypted(inner, testKey(t))
	require.NoError(t, err)
	require.NoError(t, writer.Set(ctx, []byte("secret")))

	otherKey, err := store.DeriveKey("another passphrase", []byte("0123456789abcdef"))
	require.NoError(t, err)
	reader, err := store.NewEncrypted(inner, otherKey)
	require.NoError(t, err)

	_, err = reader.Get(ctx)
	assert.True(t, errors.Is(err, store.ErrDecrypt))
}

func TestEncryptedStoreTruncatedRecord(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemory()
	require.NoError(t, inner.Set(ctx, []byte("short")))

	s, err := store.NewEncrypted(inner, testKey(t))
	require.NoError(t, err)

	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, store.ErrDecrypt)
}

func TestNewEncryptedValidation(t *testing.T) {
	_, err := store.NewEncrypted(nil, testKey(t))
	assert.Error(t, err)

	_, err = store.NewEncrypted(store.NewMemory(), []byte("too short"))
	assert.Error(t, err)

	_, err = store.DeriveKey("", []byte("0123456789abcdef"))
	assert.Error(t, err)

	_, err = store.DeriveKey("pass", []byte("salt"))
	assert.Error(t, err)

	salt, err := store.NewSalt()
	require.NoError(t, err)
	assert.Len(t, salt, 16)
}
