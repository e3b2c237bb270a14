package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	ClientIDCookie = "cid"
	ClientIDHeader = "X-Client-ID"

	clientIDMaxAge = 400 * 24 * time.Hour
)

// ClientID gives every request a stable browser identity. The cid cookie
// wins over the X-Client-ID header; a fresh uuid is minted and set as a
// cookie when neither carries a valid one.
func ClientID(secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if ck, err := c.Cookie(ClientIDCookie); err == nil && validClientID(ck.Value) {
				id = ck.Value
			} else if h := c.Request().Header.Get(ClientIDHeader); validClientID(h) {
				id = h
			}

			if id == "" {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     ClientIDCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(clientIDMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(keyClientID, id)
			return next(c)
		}
	}
}

func validClientID(s string) bool {
	_, err := uuid.Parse(s)
	return s != "" && err == nil
}
