package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-router"
)

func (s *Server) signIn(ctx router.Context) error {
	var req SignInRequest
	if err := ctx.Bind(&req); err != nil || req.Identifier == "" || req.Secret == "" {
		return ctx.JSON(fiber.StatusBadRequest, SignInResponse{Reason: ReasonInvalidCredentials})
	}

	user, err := s.backend.VerifyCredentials(ctx.Context(), authsession.Credentials{
		Identifier: req.Identifier,
		Secret:     req.Secret,
	})
	if err != nil {
		status, reason := failure(err)
		if status >= fiber.StatusInternalServerError {
			s.logger.Error("sign in: %v", err)
		}
		return ctx.JSON(status, SignInResponse{Reason: reason})
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return err
	}

	s.logger.Info("issued token for %s", user.ID)
	return ctx.JSON(fiber.StatusOK, SignInResponse{
		Success:   true,
		Identity:  user,
		Token:     token,
		ExpiresAt: &expiresAt,
	})
}

func (s *Server) revalidate(ctx router.Context) error {
	var req RevalidateRequest
	if err := ctx.Bind(&req); err != nil || req.ID == "" {
		return reject(ctx, fiber.StatusBadRequest, ReasonInvalidRequest, "id is required")
	}

	claims := claimsFrom(ctx)
	if claims == nil || claims.Subject != req.ID {
		return ctx.JSON(fiber.StatusOK, RevalidateResponse{Valid: false})
	}

	user, err := s.backend.Revalidate(ctx.Context(), req.ID)
	if err != nil {
		status, _ := failure(err)
		if status >= fiber.StatusInternalServerError {
			s.logger.Error("revalidate %s: %v", req.ID, err)
			return reject(ctx, status, ReasonUnreachable, "revalidation unavailable")
		}
		return ctx.JSON(fiber.StatusOK, RevalidateResponse{Valid: false})
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return err
	}
	s.tokens.Revoke(claims)

	return ctx.JSON(fiber.StatusOK, RevalidateResponse{
		Valid:     true,
		Identity:  user,
		Token:     token,
		ExpiresAt: &expiresAt,
	})
}

func (s *Server) signOut(ctx router.Context) error {
	claims := claimsFrom(ctx)
	s.tokens.Revoke(claims)
	if claims != nil {
		s.logger.Info("revoked token for %s", claims.Subject)
	}
	return ctx.Status(fiber.StatusNoContent).SendString("")
}

func (s *Server) updateProfile(ctx router.Context) error {
	var update authsession.ProfileUpdate
	if err := ctx.Bind(&update); err != nil {
		return reject(ctx, fiber.StatusBadRequest, ReasonInvalidRequest, "invalid payload")
	}

	user, err := s.backend.UpdateProfile(ctx.Context(), ctx.Param("id"), update)
	if err != nil {
		return s.userFailure(ctx, err)
	}
	return ctx.JSON(fiber.StatusOK, IdentityResponse{Identity: user})
}

func (s *Server) changePassword(ctx router.Context) error {
	var req PasswordRequest
	if err := ctx.Bind(&req); err != nil || req.Current == "" || req.Next == "" {
		return reject(ctx, fiber.StatusBadRequest, ReasonInvalidRequest, "current and next password are required")
	}

	user, err := s.backend.ChangePassword(ctx.Context(), ctx.Param("id"), req.Current, req.Next)
	if err != nil {
		return s.userFailure(ctx, err)
	}
	return ctx.JSON(fiber.StatusOK, IdentityResponse{Identity: user})
}

func (s *Server) userFailure(ctx router.Context, err error) error {
	status, reason := failure(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("%s %s: %v", ctx.Method(), ctx.OriginalURL(), err)
		return reject(ctx, status, reason, "internal error")
	}
	return reject(ctx, status, reason, err.Error())
}

// failure maps backend errors to a status and wire reason
func failure(err error) (int, string) {
	switch {
	case errors.Is(err, authsession.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, ReasonInvalidCredentials
	case errors.Is(err, authsession.ErrInactiveAccount):
		return fiber.StatusForbidden, ReasonInactiveAccount
	case errors.Is(err, authsession.ErrSessionRejected):
		return fiber.StatusUnauthorized, ReasonUnauthorized
	case errors.Is(err, authsession.ErrUpdateRejected):
		return fiber.StatusUnprocessableEntity, ReasonUpdateRejected
	default:
		return fiber.StatusServiceUnavailable, ReasonUnreachable
	}
}
