package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codepilot/assistant-api/internal/api/middleware"
	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// ActivityHandler serves the caller's own history, conversations and stats,
// plus the admin views over every user.
type ActivityHandler struct {
	activity ports.ActivityService
}

func NewActivityHandler(activity ports.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// History handles GET /v1/analyses.
//
// @Summary      List analyses and solutions
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        kind   query     string  false  "analysis or solution"
// @Param        page   query     int     false  "Page number (1-based)"
// @Param        limit  query     int     false  "Page size (max 100)"
// @Success      200    {object}  historyResponse
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Router       /v1/analyses [get]
func (h *ActivityHandler) History(c echo.Context) error {
	return h.history(c, middleware.SessionFrom(c).UserID)
}

// Conversations handles GET /v1/conversations.
//
// @Summary      List chat conversations
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Maximum number of conversations"
// @Success      200    {object}  conversationsResponse
// @Failure      401    {object}  errorResponse
// @Router       /v1/conversations [get]
func (h *ActivityHandler) Conversations(c echo.Context) error {
	var q listQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	items, err := h.activity.Conversations(c.Request().Context(), middleware.SessionFrom(c).UserID, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conversationsResponse{Items: items})
}

// Messages handles GET /v1/conversations/:id/messages.
//
// @Summary      List the messages of a conversation
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Conversation id"
// @Param        limit  query     int     false  "Maximum number of messages"
// @Success      200    {object}  messagesResponse
// @Failure      401    {object}  errorResponse
// @Failure      404    {object}  errorResponse
// @Router       /v1/conversations/{id}/messages [get]
func (h *ActivityHandler) Messages(c echo.Context) error {
	var q listQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	items, err := h.activity.Messages(c.Request().Context(), middleware.SessionFrom(c).UserID, c.Param("id"), q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messagesResponse{Items: items})
}

// Stats handles GET /v1/stats.
//
// @Summary      Own usage counters
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.UsageStats
// @Failure      401  {object}  errorResponse
// @Router       /v1/stats [get]
func (h *ActivityHandler) Stats(c echo.Context) error {
	stats, err := h.activity.Stats(c.Request().Context(), middleware.SessionFrom(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// AllStats handles GET /v1/admin/stats.
//
// @Summary      Usage counters of every user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (1-based)"
// @Param        limit  query     int  false  "Page size (max 100)"
// @Success      200    {object}  usageResponse
// @Failure      401    {object}  errorResponse
// @Failure      403    {object}  errorResponse
// @Router       /v1/admin/stats [get]
func (h *ActivityHandler) AllStats(c echo.Context) error {
	var q pageQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	page, err := h.activity.AllStats(c.Request().Context(), ports.Page{Page: q.Page, Limit: q.Limit})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, usageResponse{
		Items:    page.Items,
		pageMeta: pageMeta{Page: page.Page, Limit: page.Limit, Total: page.Total},
	})
}

// UserHistory handles GET /v1/admin/users/:id/history.
//
// @Summary      History of any user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "User id"
// @Param        kind   query     string  false  "analysis or solution"
// @Param        page   query     int     false  "Page number (1-based)"
// @Param        limit  query     int     false  "Page size (max 100)"
// @Success      200    {object}  historyResponse
// @Failure      401    {object}  errorResponse
// @Failure      403    {object}  errorResponse
// @Router       /v1/admin/users/{id}/history [get]
func (h *ActivityHandler) UserHistory(c echo.Context) error {
	return h.history(c, c.Param("id"))
}

func (h *ActivityHandler) history(c echo.Context, userID string) error {
	var q historyQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	page, err := h.activity.History(c.Request().Context(), userID, domain.HistoryKind(q.Kind), ports.Page{Page: q.Page, Limit: q.Limit})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, historyResponse{
		Items:    page.Items,
		pageMeta: pageMeta{Page: page.Page, Limit: page.Limit, Total: page.Total},
	})
}
