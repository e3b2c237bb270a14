package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codepilot/assistant-api/internal/api/middleware"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// SessionHandler reports who the caller is and drains their toasts.
type SessionHandler struct {
	admins   ports.AdminResolver
	notifier ports.Notifier
}

func NewSessionHandler(admins ports.AdminResolver, notifier ports.Notifier) *SessionHandler {
	return &SessionHandler{admins: admins, notifier: notifier}
}

// Current handles GET /v1/session.
//
// is_admin only toggles UI; admin routes re-verify on every request.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  currentSessionResponse
// @Router       /v1/session [get]
func (h *SessionHandler) Current(c echo.Context) error {
	s := middleware.SessionFrom(c)
	if s == nil {
		return c.JSON(http.StatusOK, currentSessionResponse{})
	}
	return c.JSON(http.StatusOK, currentSessionResponse{
		Authenticated: true,
		IsAdmin:       h.admins.IsAdmin(c.Request().Context(), s),
		Session:       toSessionResponse(s),
	})
}

// Toasts handles GET /v1/toasts. Returned toasts are removed.
//
// @Summary      Drain pending notifications
// @Tags         session
// @Produce      json
// @Success      200  {object}  toastsResponse
// @Failure      500  {object}  errorResponse
// @Router       /v1/toasts [get]
func (h *SessionHandler) Toasts(c echo.Context) error {
	toasts, err := h.notifier.Drain(c.Request().Context(), middleware.ClientIDFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toastsResponse{Toasts: toasts})
}
