package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/api/middleware"
	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// AuthHandler serves the auth modal, the email-link callback and sign-out.
type AuthHandler struct {
	flow     ports.AuthFlowService
	callback ports.CallbackService
	sessions ports.SessionService
	cookies  *SessionCookies
	log      zerolog.Logger
}

func NewAuthHandler(
	flow ports.AuthFlowService,
	callback ports.CallbackService,
	sessions ports.SessionService,
	cookies *SessionCookies,
	log zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{flow: flow, callback: callback, sessions: sessions, cookies: cookies, log: log}
}

// Flow handles GET /auth/flow.
//
// @Summary      Current auth modal step
// @Tags         auth
// @Produce      json
// @Success      200  {object}  flowResponse
// @Failure      500  {object}  errorResponse
// @Router       /auth/flow [get]
func (h *AuthHandler) Flow(c echo.Context) error {
	view, err := h.flow.State(c.Request().Context(), middleware.ClientIDFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, flowResponse{Step: view.Step, Email: view.Email})
}

// Event handles POST /auth/flow/events.
//
// @Summary      Navigate the auth modal
// @Description  Applies a navigation event (magic_link, admin, sign_up, back, cancel) to the modal.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      flowEventRequest  true  "Navigation event"
// @Success      200   {object}  flowResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/flow/events [post]
func (h *AuthHandler) Event(c echo.Context) error {
	var req flowEventRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	view, err := h.flow.Fire(c.Request().Context(), middleware.ClientIDFrom(c), domain.AuthEvent(req.Event))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, flowResponse{Step: view.Step, Email: view.Email})
}

// Submit handles POST /auth/flow/submit.
//
// Rejected credentials are not HTTP errors: the response carries the step to
// show and one of the fixed user-facing sentences.
//
// @Summary      Submit the active auth form
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      flowSubmitRequest  true  "Form fields of the active step"
// @Success      200   {object}  flowSubmitResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/flow/submit [post]
func (h *AuthHandler) Submit(c echo.Context) error {
	var req flowSubmitRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.flow.Submit(c.Request().Context(), ports.SubmitInput{
		ClientID: middleware.ClientIDFrom(c),
		Mode:     req.Mode,
		Form: domain.AuthForm{
			Email:           req.Email,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
			FullName:        req.FullName,
		},
	})
	if err != nil {
		return err
	}

	resp := flowSubmitResponse{
		Step:     res.Step,
		Error:    res.Error,
		Notice:   res.Notice,
		Redirect: res.Redirect,
	}
	if res.Session != nil {
		view, err := h.cookies.Set(c, res.Session)
		if err != nil {
			return err
		}
		resp.Session = view
	}
	return c.JSON(http.StatusOK, resp)
}

// SignOut handles POST /auth/signout.
//
// @Summary      Sign out
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Router       /auth/signout [post]
func (h *AuthHandler) SignOut(c echo.Context) error {
	if s := middleware.SessionFrom(c); s != nil {
		if err := h.sessions.SignOut(c.Request().Context(), s.ID); err != nil {
			h.log.Warn().Err(err).Str("session_id", s.ID).Msg("sign-out failed")
		}
	}
	h.cookies.Clear(c)
	return c.NoContent(http.StatusNoContent)
}

// Callback handles GET /auth/callback, the landing URL of emailed links.
// It always answers with a redirect.
//
// @Summary      Auth email-link callback
// @Tags         auth
// @Param        token          query  string  false  "One-time token hash"
// @Param        type           query  string  false  "Link type (signup, recovery, magiclink)"
// @Param        access_token   query  string  false  "Access token"
// @Param        refresh_token  query  string  false  "Refresh token"
// @Success      302
// @Router       /auth/callback [get]
func (h *AuthHandler) Callback(c echo.Context) error {
	out := h.callback.Handle(c.Request().Context(), middleware.ClientIDFrom(c), ports.CallbackParams{
		Token:        c.QueryParam("token"),
		Type:         c.QueryParam("type"),
		AccessToken:  c.QueryParam("access_token"),
		RefreshToken: c.QueryParam("refresh_token"),
	})

	redirect := out.Redirect
	if redirect == "" {
		redirect = "/"
	}
	if out.Session != nil {
		if _, err := h.cookies.Set(c, out.Session); err != nil {
			h.log.Error().Err(err).Msg("issue session cookie on callback")
			redirect = "/"
		}
	}
	return c.Redirect(http.StatusFound, redirect)
}
