package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Middleware parses the bearer session token, if present, and attaches the
// resulting session to the request context. A missing or invalid token is
// not rejected here — the fetch executor surfaces Unauthenticated as a typed
// result, and RequireRole guards the routes that need a role.
func Middleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token, ok := BearerToken(header)
			if !ok {
				return next(c)
			}

			s, err := ParseToken(secret, token)
			if err != nil || !s.Valid(time.Now()) {
				return next(c)
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, SessionKey, s)
			ctx = context.WithValue(ctx, UserIDKey, s.UserID)
			ctx = context.WithValue(ctx, RoleKey, s.Role)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole returns middleware that rejects requests whose session role is
// not one of roles. Admin passes everywhere.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if role == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
