package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// SessionCookie carries the signed session token for browser requests.
const SessionCookie = "session"

// TokenParser resolves a signed session token to a session id.
type TokenParser interface {
	Parse(raw string) (string, error)
}

// Auth requires a live session. The token comes from the Authorization
// header or the session cookie; the session itself is always re-read from
// the store.
func Auth(tokens TokenParser, sessions ports.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := loadSession(c, tokens, sessions)
			if s == nil {
				return domain.ErrUnauthenticated
			}
			c.Set(keySession, s)
			return next(c)
		}
	}
}

// OptionalAuth loads the session when there is one and lets anonymous
// requests through with none set.
func OptionalAuth(tokens TokenParser, sessions ports.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s := loadSession(c, tokens, sessions); s != nil {
				c.Set(keySession, s)
			}
			return next(c)
		}
	}
}

func loadSession(c echo.Context, tokens TokenParser, sessions ports.SessionService) *domain.Session {
	raw := bearerToken(c)
	if raw == "" {
		return nil
	}
	sid, err := tokens.Parse(raw)
	if err != nil {
		return nil
	}
	return sessions.Current(c.Request().Context(), sid)
}

func bearerToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if ck, err := c.Cookie(SessionCookie); err == nil {
		return ck.Value
	}
	return ""
}
