package store

import (
	"context"
	"crypto/rand"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Key derivation parameters for passphrase based keys.
const (
	keyTime    = 1
	keyMemory  = 64 * 1024
	keyThreads = 4
	keySaltLen = 16
)

// ErrDecrypt is returned when a stored record fails authentication. It
// happens when the passphrase changed or the record was tampered with.
var ErrDecrypt = oops.In("store").Errorf("persisted session could not be decrypted")

// Encrypted seals records with XChaCha20-Poly1305 before handing them to
// the wrapped store. The sealed layout is nonce || ciphertext.
type Encrypted struct {
	next authsession.Store
	key  []byte
}

var _ authsession.Store = (*Encrypted)(nil)

// NewEncrypted wraps next using a raw 32 byte key
func NewEncrypted(next authsession.Store, key []byte) (*Encrypted, error) {
	if next == nil {
		return nil, oops.In("store").Errorf("wrapped store is required")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, oops.In("store").
			With("key_size", len(key)).
			Errorf("encryption key must be %d bytes", chacha20poly1305.KeySize)
	}
	return &Encrypted{next: next, key: append([]byte(nil), key...)}, nil
}

// DeriveKey stretches passphrase into a 32 byte key with argon2id. The
// same salt must be used to read records written earlier.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, oops.In("store").Errorf("passphrase cannot be empty")
	}
	if len(salt) < keySaltLen {
		return nil, oops.In("store").With("salt_size", len(salt)).Errorf("salt must be at least %d bytes", keySaltLen)
	}
	return argon2.IDKey([]byte(passphrase), salt, keyTime, keyMemory, keyThreads, chacha20poly1305.KeySize), nil
}

// NewSalt returns random bytes suitable for DeriveKey
func NewSalt() ([]byte, error) {
	salt := make([]byte, keySaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, oops.In("store").Wrapf(err, "generate salt")
	}
	return salt, nil
}

// Get implements authsession.Store
func (e *Encrypted) Get(ctx context.Context) ([]byte, error) {
	sealed, err := e.next.Get(ctx)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return nil, oops.In("store").Wrapf(err, "init cipher")
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrDecrypt
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// Set implements authsession.Store
func (e *Encrypted) Set(ctx context.Context, record []byte) error {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return oops.In("store").Wrapf(err, "init cipher")
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(record)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return oops.In("store").Wrapf(err, "generate nonce")
	}

	return e.next.Set(ctx, aead.Seal(nonce, nonce, record, nil))
}

// Clear implements authsession.Store
func (e *Encrypted) Clear(ctx context.Context) error {
	return e.next.Clear(ctx)
}
