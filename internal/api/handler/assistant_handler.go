package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codepilot/assistant-api/internal/api/middleware"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// AssistantHandler exposes the AI operations. Routes run behind
// OptionalAuth: an anonymous call still reaches the service, which queues
// the sign-in toast before rejecting it.
type AssistantHandler struct {
	assistant ports.AssistantService
}

func NewAssistantHandler(assistant ports.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

// Analyze handles POST /v1/analyses.
//
// @Summary      Review a piece of code
// @Tags         assistant
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      analyzeRequest  true  "Code to analyze"
// @Success      201   {object}  domain.HistoryEntry
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      409   {object}  errorResponse  "Superseded by a newer request"
// @Failure      502   {object}  errorResponse  "Malformed provider response"
// @Failure      503   {object}  errorResponse
// @Router       /v1/analyses [post]
func (h *AssistantHandler) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	entry, err := h.assistant.Analyze(c.Request().Context(), ports.AnalyzeInput{
		ClientID: middleware.ClientIDFrom(c),
		Session:  middleware.SessionFrom(c),
		Code:     req.Code,
		Language: req.Language,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entry)
}

// Solve handles POST /v1/solutions.
//
// @Summary      Solve a described problem
// @Tags         assistant
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      solveRequest  true  "Problem statement"
// @Success      201   {object}  domain.HistoryEntry
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      409   {object}  errorResponse  "Superseded by a newer request"
// @Failure      502   {object}  errorResponse  "Malformed provider response"
// @Failure      503   {object}  errorResponse
// @Router       /v1/solutions [post]
func (h *AssistantHandler) Solve(c echo.Context) error {
	var req solveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	entry, err := h.assistant.Solve(c.Request().Context(), ports.SolveInput{
		ClientID: middleware.ClientIDFrom(c),
		Session:  middleware.SessionFrom(c),
		Problem:  req.Problem,
		Language: req.Language,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entry)
}

// Chat handles POST /v1/chat.
//
// @Summary      Send a chat message
// @Description  Omitting conversation_id starts a new conversation.
// @Tags         assistant
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      chatRequest  true  "User message"
// @Success      200   {object}  chatResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse  "Superseded by a newer request"
// @Failure      503   {object}  errorResponse
// @Router       /v1/chat [post]
func (h *AssistantHandler) Chat(c echo.Context) error {
	var req chatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.assistant.Chat(c.Request().Context(), ports.ChatInput{
		ClientID:       middleware.ClientIDFrom(c),
		Session:        middleware.SessionFrom(c),
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chatResponse{
		Conversation: res.Conversation,
		UserMessage:  res.UserMessage,
		Reply:        res.Reply,
	})
}
