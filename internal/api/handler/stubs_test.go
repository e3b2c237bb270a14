package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

const testClientID = "7f1c1c52-4a3e-4bb8-9d0a-2f7c6a1d9e11"

// newContext builds an echo context the way the ClientID and auth
// middleware would leave it.
func newContext(method, target, body string, sess *domain.Session) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("client_id", testClientID)
	if sess != nil {
		c.Set("session", sess)
	}
	return c, rec
}

type stubTokens struct{}

func (stubTokens) Issue(s *domain.Session) (string, time.Time, error) {
	return "tok-" + s.ID, time.Now().Add(time.Hour), nil
}

type stubFlow struct {
	view      ports.FlowView
	fired     []domain.AuthEvent
	submitted []ports.SubmitInput
	result    *ports.SubmitResult
	err       error
}

func (s *stubFlow) State(context.Context, string) (ports.FlowView, error) { return s.view, s.err }

func (s *stubFlow) Fire(_ context.Context, _ string, ev domain.AuthEvent) (ports.FlowView, error) {
	s.fired = append(s.fired, ev)
	return s.view, s.err
}

func (s *stubFlow) Submit(_ context.Context, in ports.SubmitInput) (*ports.SubmitResult, error) {
	s.submitted = append(s.submitted, in)
	return s.result, s.err
}

type stubCallback struct {
	params  ports.CallbackParams
	outcome ports.CallbackOutcome
}

func (s *stubCallback) Handle(_ context.Context, _ string, p ports.CallbackParams) ports.CallbackOutcome {
	s.params = p
	return s.outcome
}

type stubSessions struct {
	signedOut []string
}

func (s *stubSessions) Establish(context.Context, domain.Tokens) (*domain.Session, error) {
	return nil, domain.ErrUnauthenticated
}
func (s *stubSessions) Current(context.Context, string) *domain.Session { return nil }
func (s *stubSessions) SignOut(_ context.Context, id string) error {
	s.signedOut = append(s.signedOut, id)
	return nil
}
func (s *stubSessions) Subscribe(func(domain.SessionEvent)) func() { return func() {} }

type stubAdmins struct{ admin bool }

func (s stubAdmins) IsAdmin(context.Context, *domain.Session) bool { return s.admin }
func (s stubAdmins) Verify(context.Context, *domain.Session) bool  { return s.admin }

type stubNotifier struct{ toasts []domain.Toast }

func (s *stubNotifier) Toast(_ context.Context, _ string, t domain.Toast) error {
	s.toasts = append(s.toasts, t)
	return nil
}

func (s *stubNotifier) Drain(context.Context, string) ([]domain.Toast, error) {
	out := s.toasts
	s.toasts = nil
	return out, nil
}

type stubSwitch struct {
	prefs domain.Preferences
}

func (s *stubSwitch) Get(context.Context, string) domain.AIProvider { return s.prefs.Provider }
func (s *stubSwitch) Set(_ context.Context, _ string, p domain.AIProvider) error {
	if !p.Valid() {
		return domain.ErrUnknownProvider
	}
	s.prefs.Provider = p
	return nil
}
func (s *stubSwitch) Preferences(context.Context, string) domain.Preferences { return s.prefs }
func (s *stubSwitch) SetTheme(_ context.Context, _ string, t domain.Theme) error {
	s.prefs.Theme = t
	return nil
}
func (s *stubSwitch) Subscribe(func(domain.ProviderChanged)) func() { return func() {} }

type stubCatalog []ports.ProviderInfo

func (s stubCatalog) List() []ports.ProviderInfo { return s }

type stubAssistant struct {
	analyze func(ports.AnalyzeInput) (*domain.HistoryEntry, error)
	solve   func(ports.SolveInput) (*domain.HistoryEntry, error)
	chat    func(ports.ChatInput) (*ports.ChatResult, error)
}

func (s *stubAssistant) Analyze(_ context.Context, in ports.AnalyzeInput) (*domain.HistoryEntry, error) {
	return s.analyze(in)
}
func (s *stubAssistant) Solve(_ context.Context, in ports.SolveInput) (*domain.HistoryEntry, error) {
	return s.solve(in)
}
func (s *stubAssistant) Chat(_ context.Context, in ports.ChatInput) (*ports.ChatResult, error) {
	return s.chat(in)
}

type stubActivity struct {
	historyUser string
	historyKind domain.HistoryKind
	historyPage ports.Page
	messagesErr error
}

func (s *stubActivity) History(_ context.Context, userID string, kind domain.HistoryKind, p ports.Page) (*ports.HistoryPage, error) {
	s.historyUser, s.historyKind, s.historyPage = userID, kind, p
	return &ports.HistoryPage{Items: []domain.HistoryEntry{{ID: "h1", UserID: userID, Kind: domain.KindAnalysis}}, Total: 1, Page: 1, Limit: 20}, nil
}
func (s *stubActivity) Conversations(_ context.Context, userID string, _ int) ([]domain.Conversation, error) {
	return []domain.Conversation{{ID: "c1", UserID: userID}}, nil
}
func (s *stubActivity) Messages(context.Context, string, string, int) ([]domain.Message, error) {
	return nil, s.messagesErr
}
func (s *stubActivity) Stats(_ context.Context, userID string) (*domain.UsageStats, error) {
	return &domain.UsageStats{UserID: userID, AnalysesCount: 2}, nil
}
func (s *stubActivity) AllStats(_ context.Context, p ports.Page) (*ports.UsagePage, error) {
	return &ports.UsagePage{Items: []domain.UsageStats{{UserID: "u1"}, {UserID: "u2"}}, Total: 2, Page: 1, Limit: 20}, nil
}
