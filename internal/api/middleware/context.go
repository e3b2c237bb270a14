package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// Context keys set by this package.
const (
	keyClientID = "client_id"
	keySession  = "session"
)

// ClientIDFrom returns the browser identity set by ClientID.
func ClientIDFrom(c echo.Context) string {
	id, _ := c.Get(keyClientID).(string)
	return id
}

// SessionFrom returns the session loaded by Auth or OptionalAuth, or nil.
func SessionFrom(c echo.Context) *domain.Session {
	s, _ := c.Get(keySession).(*domain.Session)
	return s
}
