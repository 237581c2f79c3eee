// Package middleware provides HTTP middleware for the Vanishmail API.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vanishmail/vanishmail-backend/internal/logger"
)

// AdminSecretHeader carries the admin shared secret.
const AdminSecretHeader = "x-admin-secret"

// AdminAuth validates the admin shared secret from the request header.
// Uses constant-time comparison to prevent timing attacks. An empty
// configured secret disables the admin surface entirely rather than
// leaving it open.
func AdminAuth(secret string, secLog *logger.SecurityLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				if secLog != nil {
					secLog.AuthFailure(c.RealIP(), c.Path(), "admin_secret_not_configured")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
					"error": "admin access disabled",
					"code":  "UNAUTHORIZED",
				})
			}

			provided := c.Request().Header.Get(AdminSecretHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				if secLog != nil {
					secLog.AuthFailure(c.RealIP(), c.Path(), "invalid_admin_secret")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
					"error": "invalid admin secret",
					"code":  "UNAUTHORIZED",
				})
			}

			return next(c)
		}
	}
}
