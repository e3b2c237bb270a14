package ports

import (
	"context"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// SessionService is the session store shared by every component.
type SessionService interface {
	// Establish validates provider tokens, stores a new session and
	// announces it.
	Establish(ctx context.Context, tokens domain.Tokens) (*domain.Session, error)
	// Current never fails: any lookup problem reads as "logged out" (nil).
	Current(ctx context.Context, sessionID string) *domain.Session
	SignOut(ctx context.Context, sessionID string) error
	Subscribe(fn func(domain.SessionEvent)) (unsubscribe func())
}

// AdminResolver answers "is this session an admin". The cached answer only
// toggles UI; Verify is used wherever authorization depends on it.
type AdminResolver interface {
	IsAdmin(ctx context.Context, s *domain.Session) bool
	Verify(ctx context.Context, s *domain.Session) bool
}

// Submission modes for the forgot step.
const (
	ModeMagicLink     = "magic_link"
	ModePasswordReset = "password_reset"
)

// FlowView is what the modal renders.
type FlowView struct {
	Step  domain.AuthStep
	Email string
}

// SubmitInput is one form submission from the active step.
type SubmitInput struct {
	ClientID string
	// Mode selects between the two submissions of the forgot step.
	Mode string
	Form domain.AuthForm
}

// SubmitResult reports the outcome of a submission. Error is one of the
// fixed user-facing sentences; it is empty on success.
type SubmitResult struct {
	Step     domain.AuthStep
	Error    string
	Notice   string
	Session  *domain.Session
	Redirect string
}

// AuthFlowService drives the authentication modal of a browser.
type AuthFlowService interface {
	State(ctx context.Context, clientID string) (FlowView, error)
	Fire(ctx context.Context, clientID string, ev domain.AuthEvent) (FlowView, error)
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
}

// CallbackParams are the recognized query parameters of the auth callback.
type CallbackParams struct {
	Token        string
	Type         string
	AccessToken  string
	RefreshToken string
}

// CallbackOutcome is where the browser goes next. Session is set when the
// callback established one.
type CallbackOutcome struct {
	Redirect string
	Session  *domain.Session
}

// CallbackService completes email-link handshakes.
type CallbackService interface {
	Handle(ctx context.Context, clientID string, params CallbackParams) CallbackOutcome
}

// ProviderSwitch is the browser's AI provider selection.
type ProviderSwitch interface {
	Get(ctx context.Context, clientID string) domain.AIProvider
	Set(ctx context.Context, clientID string, p domain.AIProvider) error
	Preferences(ctx context.Context, clientID string) domain.Preferences
	SetTheme(ctx context.Context, clientID string, t domain.Theme) error
	Subscribe(fn func(domain.ProviderChanged)) (unsubscribe func())
}

// AnalyzeInput asks for a code review.
type AnalyzeInput struct {
	ClientID string
	Session  *domain.Session
	Code     string
	Language string
}

// SolveInput asks for a solution to a described problem.
type SolveInput struct {
	ClientID string
	Session  *domain.Session
	Problem  string
	Language string
}

// ChatInput is one user turn. An empty ConversationID starts a new thread.
type ChatInput struct {
	ClientID       string
	Session        *domain.Session
	ConversationID string
	Message        string
}

// ChatResult is the persisted exchange.
type ChatResult struct {
	Conversation *domain.Conversation
	UserMessage  *domain.Message
	Reply        *domain.Message
}

// AssistantService is the AI orchestration layer.
type AssistantService interface {
	Analyze(ctx context.Context, in AnalyzeInput) (*domain.HistoryEntry, error)
	Solve(ctx context.Context, in SolveInput) (*domain.HistoryEntry, error)
	Chat(ctx context.Context, in ChatInput) (*ChatResult, error)
}

// Page is a 1-based page request. Zero values select the defaults.
type Page struct {
	Page  int
	Limit int
}

// HistoryPage is one page of history entries.
type HistoryPage struct {
	Items []domain.HistoryEntry
	Total int64
	Page  int
	Limit int
}

// UsagePage is one page of usage counters.
type UsagePage struct {
	Items []domain.UsageStats
	Total int64
	Page  int
	Limit int
}

// ActivityService serves the read side of a user's recorded activity.
type ActivityService interface {
	History(ctx context.Context, userID string, kind domain.HistoryKind, p Page) (*HistoryPage, error)
	Conversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)
	Messages(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error)
	Stats(ctx context.Context, userID string) (*domain.UsageStats, error)
	AllStats(ctx context.Context, p Page) (*UsagePage, error)
}
