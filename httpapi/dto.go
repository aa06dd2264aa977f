package httpapi

import (
	"time"

	authsession "github.com/goliatone/go-auth-session"
)

// SignInRequest is the body of POST /v1/sessions
type SignInRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// SignInResponse answers POST /v1/sessions
type SignInResponse struct {
	Success   bool              `json:"success"`
	Identity  *authsession.User `json:"identity,omitempty"`
	Token     string            `json:"token,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Reason    string            `json:"reason,omitempty"`
}

// RevalidateRequest is the body of POST /v1/sessions/revalidate
type RevalidateRequest struct {
	ID string `json:"id"`
}

// RevalidateResponse answers POST /v1/sessions/revalidate. A valid answer
// carries a rotated token.
type RevalidateResponse struct {
	Valid     bool              `json:"valid"`
	Identity  *authsession.User `json:"identity,omitempty"`
	Token     string            `json:"token,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// PasswordRequest is the body of POST /v1/users/:id/password
type PasswordRequest struct {
	Current string `json:"current"`
	Next    string `json:"next"`
}

// IdentityResponse answers the user endpoints
type IdentityResponse struct {
	Identity *authsession.User `json:"identity"`
}

// ErrorResponse is returned with every non 2xx status
type ErrorResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}
