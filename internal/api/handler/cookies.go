package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/codepilot/assistant-api/internal/api/middleware"
	"github.com/codepilot/assistant-api/internal/core/domain"
)

// TokenIssuer signs the session token handed to the browser.
type TokenIssuer interface {
	Issue(s *domain.Session) (string, time.Time, error)
}

// SessionCookies issues session tokens and writes them as cookies.
type SessionCookies struct {
	tokens TokenIssuer
	secure bool
}

func NewSessionCookies(tokens TokenIssuer, secure bool) *SessionCookies {
	return &SessionCookies{tokens: tokens, secure: secure}
}

// Set issues a token for s, stores it in the session cookie and returns the
// response view of s carrying the same token.
func (sc *SessionCookies) Set(c echo.Context, s *domain.Session) (*sessionResponse, error) {
	raw, exp, err := sc.tokens.Issue(s)
	if err != nil {
		return nil, err
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    raw,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteLaxMode,
	})
	resp := toSessionResponse(s)
	resp.Token = raw
	resp.TokenExpires = exp
	return resp, nil
}

// Clear expires the session cookie.
func (sc *SessionCookies) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func toSessionResponse(s *domain.Session) *sessionResponse {
	return &sessionResponse{
		UserID:        s.UserID,
		Email:         s.Email,
		EmailVerified: s.EmailVerified,
	}
}
