package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// RequireAdmin must run after Auth. Admin status is re-checked with the
// identity service on every request; the cached flag only drives the UI.
func RequireAdmin(admins ports.AdminResolver, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := SessionFrom(c)
			if s == nil {
				return domain.ErrUnauthenticated
			}
			if !admins.Verify(c.Request().Context(), s) {
				log.Warn().Str("user_id", s.UserID).Str("path", c.Path()).Msg("admin access denied")
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
