// Package authz authenticates bearer tokens and guards routes by role.
package authz

import (
	"context"
	"errors"
	"strings"

	"github.com/tutorhub/tutorhub/pkg/auth"
	"github.com/tutorhub/tutorhub/pkg/controller"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/server/router"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errMalformed    = errors.New("malformed authorization header")
)

// Authenticate requires a valid bearer token. The claims and the derived
// identity are stored in the request context.
func Authenticate(validator auth.JWTValidator, log logger.Logger) router.MiddlewareFunc {
	return authenticate(validator, log, true)
}

// OptionalAuthenticate behaves like Authenticate when an Authorization header
// is present and lets anonymous requests through otherwise.
func OptionalAuthenticate(validator auth.JWTValidator, log logger.Logger) router.MiddlewareFunc {
	return authenticate(validator, log, false)
}

func authenticate(validator auth.JWTValidator, log logger.Logger, required bool) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" && !required {
				return next(c)
			}

			token, err := bearerToken(header)
			if err != nil {
				return controller.Error(c, controller.NewUnauthorizedError("", err.Error(), err))
			}

			ctx := c.Request().Context()
			claims, err := validator.Validate(ctx, token)
			if err != nil {
				log.WithContext(ctx).Debug("token rejected", "error", err)
				return controller.Error(c, controller.NewUnauthorizedError("", "invalid token", err))
			}
			identity, err := auth.IdentityFromClaims(claims)
			if err != nil {
				log.WithContext(ctx).Debug("token carries no usable identity", "subject", claims.Subject)
				return controller.Error(c, controller.NewUnauthorizedError("", "invalid token", err))
			}

			ctx = auth.WithIdentity(auth.WithClaims(ctx, claims), identity)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole rejects requests without an identity (401) or whose role is not
// listed (403). It must run after Authenticate.
func RequireRole(roles ...auth.Role) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			identity, ok := auth.IdentityFromContext(c.Request().Context())
			if !ok {
				return controller.Error(c, controller.NewUnauthorizedError("", "authentication required", nil))
			}
			if !identity.HasRole(roles...) {
				return controller.Error(c, controller.NewForbiddenError("", "role not allowed", nil))
			}
			return next(c)
		}
	}
}

// Identity returns the authenticated identity of the request, if any.
func Identity(ctx context.Context) (auth.Identity, bool) {
	return auth.IdentityFromContext(ctx)
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errMalformed
	}
	return strings.TrimSpace(token), nil
}
