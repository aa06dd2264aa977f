package httpapi

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authsession "github.com/goliatone/go-auth-session"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultTokenTTL is used when Config.TokenTTL is zero
const DefaultTokenTTL = time.Hour

// ErrTokenRevoked is returned by Parse for signed out tokens
var ErrTokenRevoked = errors.New("token revoked")

// Claims is the access token payload
type Claims struct {
	Role authsession.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and parses HS256 access tokens. Revoked token ids are
// remembered until the token would have expired.
type Tokens struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewTokens builds a token issuer
func NewTokens(key []byte, ttl time.Duration, issuer string, now func() time.Time) (*Tokens, error) {
	if len(key) < 16 {
		return nil, oops.In("httpapi").Errorf("signing key must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{
		key:     key,
		ttl:     ttl,
		issuer:  issuer,
		now:     now,
		revoked: make(map[string]time.Time),
	}, nil
}

// Issue signs a token for user
func (t *Tokens) Issue(user *authsession.User) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := &Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, oops.In("httpapi").With("sub", user.ID).Wrapf(err, "sign token")
	}
	return signed, expiresAt, nil
}

// Parse validates raw and returns its claims
func (t *Tokens) Parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	}, opts...); err != nil {
		return nil, err
	}

	t.mu.Lock()
	_, revoked := t.revoked[claims.ID]
	t.mu.Unlock()
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke rejects the token id until expiresAt
func (t *Tokens) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	expiresAt := t.now().Add(t.ttl)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, exp := range t.revoked {
		if now.After(exp) {
			delete(t.revoked, id)
		}
	}
	t.revoked[claims.ID] = expiresAt
}
