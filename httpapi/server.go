// Package httpapi serves the account directory over HTTP. The session
// endpoints answer with the verifier and revalidator wire shapes, the user
// endpoints require a bearer token issued at sign in.
package httpapi

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/samber/oops"
)

// Failure reasons on the wire
const (
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonInactiveAccount    = "inactive_account"
	ReasonUnreachable        = "unreachable"
	ReasonUnauthorized       = "unauthorized"
	ReasonForbidden          = "forbidden"
	ReasonUpdateRejected     = "update_rejected"
	ReasonInvalidRequest     = "invalid_request"
)

const claimsKey = "authsession_claims"

// Backend is the account store served by the API
type Backend interface {
	authsession.CredentialVerifier
	authsession.SessionRevalidator
	authsession.ProfileUpdater
	authsession.PasswordChanger
}

// Config configures token issuing
type Config struct {
	SigningKey []byte
	TokenTTL   time.Duration
	Issuer     string
}

// Server routes the API through go-router on top of a fiber application
type Server struct {
	app      *fiber.App
	srv      router.Server[*fiber.App]
	backend  Backend
	tokens   *Tokens
	logger   authsession.Logger
	gatherer prometheus.Gatherer
	requests *prometheus.CounterVec
	now      func() time.Time
}

// Option customizes a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger authsession.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry registers request metrics with reg and serves it on /metrics
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg == nil {
			return
		}
		s.requests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authsession_http_requests_total",
				Help: "Total number of API requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		)
		reg.MustRegister(s.requests)
		s.gatherer = reg
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.now = clock
		}
	}
}

// New builds the server and registers its routes
func New(backend Backend, cfg Config, opts ...Option) (*Server, error) {
	if backend == nil {
		return nil, oops.In("httpapi").Errorf("backend is required")
	}

	s := &Server{
		backend: backend,
		logger:  authsession.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	tokens, err := NewTokens(cfg.SigningKey, cfg.TokenTTL, cfg.Issuer, s.now)
	if err != nil {
		return nil, err
	}
	s.tokens = tokens

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(s.instrument)

	s.srv = router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return s.app
	})
	s.routes(s.srv.Router())

	return s, nil
}

// App exposes the underlying fiber application (useful for tests).
func (s *Server) App() *fiber.App {
	return s.app
}

// Tokens returns the token issuer
func (s *Server) Tokens() *Tokens {
	return s.tokens
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening on %s", addr)
	return s.srv.Serve(addr)
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes(r router.Router[*fiber.App]) {
	r.Get("/healthz", func(ctx router.Context) error {
		return ctx.JSON(fiber.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Get("/metrics", s.metrics)
	}

	v1 := r.Group("/v1")
	v1.Post("/sessions", s.signIn)
	v1.Post("/sessions/revalidate", s.revalidate, s.bearer)
	v1.Delete("/sessions", s.signOut, s.bearer)

	v1.Patch("/users/:id/profile", s.updateProfile, s.bearer, s.owner)
	v1.Post("/users/:id/password", s.changePassword, s.bearer, s.owner)
}

// instrument runs at the fiber level where the final status is known
func (s *Server) instrument(c *fiber.Ctx) error {
	start := s.now()
	err := c.Next()

	status := c.Response().StatusCode()
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		status = ferr.Code
	}

	s.logger.Debug("%s %s -> %d (%s)", c.Method(), c.Path(), status, s.now().Sub(start))
	if s.requests != nil {
		s.requests.WithLabelValues(c.Route().Path, c.Method(), strconv.Itoa(status)).Inc()
	}
	return err
}

// metrics writes the registry in the prometheus text format
func (s *Server) metrics(ctx router.Context) error {
	families, err := s.gatherer.Gather()
	if err != nil {
		return err
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	ctx.SetHeader(fiber.HeaderContentType, string(format))
	return ctx.Status(fiber.StatusOK).SendString(buf.String())
}

// bearer parses the access token and stores its claims in locals
func (s *Server) bearer(hf router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		header := ctx.Header(fiber.HeaderAuthorization)
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return reject(ctx, fiber.StatusUnauthorized, ReasonUnauthorized, "missing bearer token")
		}

		claims, err := s.tokens.Parse(parts[1])
		if err != nil {
			s.logger.Debug("rejecting token: %v", err)
			return reject(ctx, fiber.StatusUnauthorized, ReasonUnauthorized, "invalid token")
		}

		ctx.Locals(claimsKey, claims)
		return ctx.Next()
	}
}

// owner requires the token subject to match the :id parameter
func (s *Server) owner(hf router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		claims := claimsFrom(ctx)
		if claims == nil || claims.Subject != ctx.Param("id") {
			return reject(ctx, fiber.StatusForbidden, ReasonForbidden, "token does not belong to this user")
		}
		return ctx.Next()
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Method(), c.Path(), err)
		return c.Status(code).JSON(ErrorResponse{Reason: ReasonUnreachable, Message: "internal error"})
	}
	return c.Status(code).JSON(ErrorResponse{Reason: ReasonInvalidRequest, Message: err.Error()})
}

func claimsFrom(ctx router.Context) *Claims {
	claims, _ := ctx.Locals(claimsKey).(*Claims)
	return claims
}

func reject(ctx router.Context, status int, reason, message string) error {
	return ctx.JSON(status, ErrorResponse{Reason: reason, Message: message})
}
