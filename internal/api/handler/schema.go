package handler

import (
	"time"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth flow ---

type flowResponse struct {
	Step  domain.AuthStep `json:"step"`
	Email string          `json:"email,omitempty"`
}

type flowEventRequest struct {
	Event string `json:"event" validate:"required,oneof=magic_link admin sign_up back cancel"`
}

type flowSubmitRequest struct {
	Mode            string `json:"mode"             validate:"omitempty,oneof=magic_link password_reset"`
	Email           string `json:"email"            validate:"omitempty,email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FullName        string `json:"full_name"        validate:"max=120"`
}

type flowSubmitResponse struct {
	Step     domain.AuthStep  `json:"step"`
	Error    string           `json:"error,omitempty"`
	Notice   string           `json:"notice,omitempty"`
	Redirect string           `json:"redirect,omitempty"`
	Session  *sessionResponse `json:"session,omitempty"`
}

// --- Session ---

type sessionResponse struct {
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Token         string    `json:"token,omitempty"`
	TokenExpires  time.Time `json:"token_expires_at,omitempty"`
}

type currentSessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	IsAdmin       bool             `json:"is_admin"`
	Session       *sessionResponse `json:"session,omitempty"`
}

// --- Preferences and providers ---

type preferencesRequest struct {
	Provider string `json:"provider" validate:"omitempty,oneof=gemini openai"`
	Theme    string `json:"theme"    validate:"omitempty,oneof=light dark system"`
}

type preferencesResponse struct {
	Provider domain.AIProvider `json:"provider"`
	Theme    domain.Theme      `json:"theme"`
}

type providersResponse struct {
	Current   domain.AIProvider    `json:"current"`
	Providers []ports.ProviderInfo `json:"providers"`
}

type toastsResponse struct {
	Toasts []domain.Toast `json:"toasts"`
}

// --- Assistant ---

type analyzeRequest struct {
	Code     string `json:"code"     validate:"required,max=100000"`
	Language string `json:"language" validate:"max=40"`
}

type solveRequest struct {
	Problem  string `json:"problem"  validate:"required,max=20000"`
	Language string `json:"language" validate:"max=40"`
}

type chatRequest struct {
	ConversationID string `json:"conversation_id" validate:"omitempty,uuid"`
	Message        string `json:"message"         validate:"required,max=20000"`
}

type chatResponse struct {
	Conversation *domain.Conversation `json:"conversation"`
	UserMessage  *domain.Message      `json:"user_message"`
	Reply        *domain.Message      `json:"reply"`
}

// --- Activity ---

type pageQuery struct {
	Page  int `query:"page"  validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

type historyQuery struct {
	Page  int    `query:"page"  validate:"omitempty,min=1"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Kind  string `query:"kind"  validate:"omitempty,oneof=analysis solution"`
}

type listQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

type pageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type historyResponse struct {
	Items []domain.HistoryEntry `json:"items"`
	pageMeta
}

type usageResponse struct {
	Items []domain.UsageStats `json:"items"`
	pageMeta
}

type conversationsResponse struct {
	Items []domain.Conversation `json:"items"`
}

type messagesResponse struct {
	Items []domain.Message `json:"items"`
}
