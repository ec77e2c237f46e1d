package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	authpkg "github.com/roamium/discovery/internal/auth"
)

// JWT validates bearer tokens and stores the caller's subject and scopes in
// the echo context.
func JWT(manager *authpkg.JWTManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid authorization header"})
			}

			claims, err := manager.ParseToken(strings.TrimSpace(parts[1]))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			c.Set(ContextKeySubject, claims.Subject)
			c.Set(ContextKeyScopes, claims.Scopes)

			return next(c)
		}
	}
}

// RequireScope rejects requests whose token does not grant scope.
func RequireScope(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scopes, ok := c.Get(ContextKeyScopes).([]string)
			if !ok || len(scopes) == 0 {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "missing scopes"})
			}
			if !slices.Contains(scopes, scope) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "insufficient scope"})
			}
			return next(c)
		}
	}
}
