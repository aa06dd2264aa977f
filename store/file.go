package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/samber/oops"
)

const fileMode = 0o600

// File keeps the record in a single file on the local device. Writes go
// to a temporary file that is renamed over the target.
type File struct {
	path string
}

var _ authsession.Store = (*File)(nil)

// NewFile returns a store backed by path. Parent directories are created
// on the first write.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location
func (f *File) Path() string {
	return f.path
}

// Get implements authsession.Store
func (f *File) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, authsession.ErrNoRecord
	}
	if err != nil {
		return nil, oops.In("store").With("path", f.path).Wrapf(err, "read session file")
	}
	if len(raw) == 0 {
		return nil, authsession.ErrNoRecord
	}
	return raw, nil
}

// Set implements authsession.Store
func (f *File) Set(ctx context.Context, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.In("store").With("path", f.path).Wrapf(err, "create session directory")
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return oops.In("store").With("path", f.path).Wrapf(err, "create temporary session file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(record); err != nil {
		tmp.Close()
		return oops.In("store").With("path", f.path).Wrapf(err, "write session file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return oops.In("store").With("path", f.path).Wrapf(err, "sync session file")
	}
	if err := tmp.Close(); err != nil {
		return oops.In("store").With("path", f.path).Wrapf(err, "close session file")
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		return oops.In("store").With("path", f.path).Wrapf(err, "chmod session file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return oops.In("store").With("path", f.path).Wrapf(err, "replace session file")
	}
	return nil
}

// Clear implements authsession.Store. Clearing a missing file succeeds.
func (f *File) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.In("store").With("path", f.path).Wrapf(err, "remove session file")
	}
	return nil
}
