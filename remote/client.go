// Package remote implements the session collaborator ports against the
// httpapi service. The bearer token issued at sign in is kept in a token
// store so separate processes can share one session.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/httpapi"
	"github.com/goliatone/go-auth-session/store"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Defaults for the retry policy
const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 200 * time.Millisecond
	DefaultTimeout    = 10 * time.Second
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do implements Doer.
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// StatusError reports an unexpected response status
type StatusError struct {
	Status int
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return "unexpected status " + http.StatusText(e.Status)
	}
	return "unexpected status " + http.StatusText(e.Status) + ": " + e.Reason
}

// Client talks to the httpapi service
type Client struct {
	baseURL    string
	doer       Doer
	tokens     authsession.Store
	maxRetries uint64
	backoff    time.Duration
	timeout    time.Duration
	logger     authsession.Logger

	mu sync.Mutex
}

var (
	_ authsession.CredentialVerifier = (*Client)(nil)
	_ authsession.SessionRevalidator = (*Client)(nil)
	_ authsession.ProfileUpdater     = (*Client)(nil)
	_ authsession.PasswordChanger    = (*Client)(nil)
	_ authsession.RemoteSignOut      = (*Client)(nil)
)

// Option customizes a Client
type Option func(*Client)

// WithDoer replaces the HTTP transport
func WithDoer(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithTokenStore persists the bearer token. Defaults to process memory.
func WithTokenStore(tokens authsession.Store) Option {
	return func(c *Client) {
		if tokens != nil {
			c.tokens = tokens
		}
	}
}

// WithRetries sets how many times transport failures and 5xx answers are
// retried, backing off exponentially from base.
func WithRetries(max uint64, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		if base > 0 {
			c.backoff = base
		}
	}
}

// WithTimeout bounds every attempt
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the diagnostics logger
func WithLogger(logger authsession.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a client for the service at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, oops.In("remote").With("url", baseURL).Errorf("invalid server url")
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		doer:       http.DefaultClient,
		tokens:     store.NewMemory(),
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		timeout:    DefaultTimeout,
		logger:     authsession.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// VerifyCredentials implements authsession.CredentialVerifier
func (c *Client) VerifyCredentials(ctx context.Context, creds authsession.Credentials) (*authsession.User, error) {
	var out httpapi.SignInResponse
	status, err := c.call(ctx, http.MethodPost, "/v1/sessions", "", httpapi.SignInRequest{
		Identifier: creds.Identifier,
		Secret:     creds.Secret,
	}, &out)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK || !out.Success || out.Identity == nil {
		return nil, reasonError(status, out.Reason)
	}

	if err := c.saveToken(ctx, out.Token); err != nil {
		return nil, err
	}
	return out.Identity, nil
}

// Revalidate implements authsession.SessionRevalidator. The stored token
// is rotated on success and dropped on rejection.
func (c *Client) Revalidate(ctx context.Context, userID string) (*authsession.User, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, oops.In("remote").With("id", userID).Wrapf(authsession.ErrSessionRejected, "no access token")
	}

	var out httpapi.RevalidateResponse
	status, err := c.call(ctx, http.MethodPost, "/v1/sessions/revalidate", token, httpapi.RevalidateRequest{ID: userID}, &out)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || (status == http.StatusOK && (!out.Valid || out.Identity == nil)) {
		c.dropToken(ctx)
		return nil, oops.In("remote").With("id", userID).Wrap(authsession.ErrSessionRejected)
	}
	if status != http.StatusOK {
		return nil, &StatusError{Status: status}
	}

	if err := c.saveToken(ctx, out.Token); err != nil {
		return nil, err
	}
	return out.Identity, nil
}

// UpdateProfile implements authsession.ProfileUpdater
func (c *Client) UpdateProfile(ctx context.Context, userID string, update authsession.ProfileUpdate) (*authsession.User, error) {
	return c.userCall(ctx, http.MethodPatch, "/v1/users/"+url.PathEscape(userID)+"/profile", update)
}

// ChangePassword implements authsession.PasswordChanger
func (c *Client) ChangePassword(ctx context.Context, userID, current, next string) (*authsession.User, error) {
	return c.userCall(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/password", httpapi.PasswordRequest{
		Current: current,
		Next:    next,
	})
}

// SignOut implements authsession.RemoteSignOut. The local token is
// dropped even when the server cannot be reached.
func (c *Client) SignOut(ctx context.Context, userID string) error {
	token, err := c.Token(ctx)
	if err != nil || token == "" {
		return err
	}
	defer c.dropToken(ctx)

	status, err := c.call(ctx, http.MethodDelete, "/v1/sessions", token, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusUnauthorized {
		return &StatusError{Status: status}
	}
	return nil
}

// Token returns the stored bearer token or an empty string
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.tokens.Get(ctx)
	if errors.Is(err, authsession.ErrNoRecord) {
		return "", nil
	}
	if err != nil {
		return "", oops.In("remote").Wrapf(err, "read token")
	}
	return string(raw), nil
}

func (c *Client) saveToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.tokens.Set(ctx, []byte(token)); err != nil {
		return oops.In("remote").Wrapf(err, "save token")
	}
	return nil
}

func (c *Client) dropToken(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Warn("clear token: %v", err)
	}
}

func (c *Client) userCall(ctx context.Context, method, path string, body any) (*authsession.User, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, oops.In("remote").Wrapf(authsession.ErrSessionRejected, "no access token")
	}

	var out struct {
		httpapi.IdentityResponse
		httpapi.ErrorResponse
	}
	status, err := c.call(ctx, method, path, token, body, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, reasonError(status, out.Reason)
	}
	return out.Identity, nil
}

// call sends one request, retrying transport failures and 5xx answers.
// out is decoded from the final answer when it carries a body.
func (c *Client) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, oops.In("remote").Wrapf(err, "encode request")
		}
		payload = raw
	}

	var (
		status int
		raw    []byte
	)
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			c.logger.Debug("%s %s: %v", method, path, err)
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		status = resp.StatusCode
		if status >= http.StatusInternalServerError {
			c.logger.Debug("%s %s: status %d", method, path, status)
			return retry.RetryableError(&StatusError{Status: status, Reason: decodeReason(raw)})
		}
		return nil
	})
	if err != nil {
		return 0, oops.In("remote").With("method", method).With("path", path).Wrapf(err, "request failed")
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return status, oops.In("remote").With("status", status).Wrapf(err, "decode response")
		}
	}
	return status, nil
}

// reasonError maps a wire failure onto the collaborator sentinels. Unknown
// reasons are reported as plain errors, which the Manager treats as the
// service being unreachable.
func reasonError(status int, reason string) error {
	var sentinel error
	switch reason {
	case httpapi.ReasonInvalidCredentials:
		sentinel = authsession.ErrInvalidCredentials
	case httpapi.ReasonInactiveAccount:
		sentinel = authsession.ErrInactiveAccount
	case httpapi.ReasonUnauthorized, httpapi.ReasonForbidden:
		sentinel = authsession.ErrSessionRejected
	case httpapi.ReasonUpdateRejected:
		sentinel = authsession.ErrUpdateRejected
	default:
		return &StatusError{Status: status, Reason: reason}
	}
	return oops.In("remote").With("status", status).Wrap(sentinel)
}

func decodeReason(raw []byte) string {
	var body httpapi.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Reason
}
