package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
	"github.com/codepilot/assistant-api/internal/metrics"
)

const (
	opAnalyze = "analyze"
	opSolve   = "solve"
	opChat    = "chat"

	defaultAITimeout = 60 * time.Second
)

var opTitles = map[string]string{
	opAnalyze: "Code analysis failed",
	opSolve:   "Problem solving failed",
	opChat:    "Chat failed",
}

// AssistantDeps groups the collaborators of AssistantService.
type AssistantDeps struct {
	Generators    ports.GeneratorRegistry
	Switch        ports.ProviderSwitch
	History       ports.HistoryRepository
	Conversations ports.ConversationRepository
	Usage         ports.UsageRecorder
	Notifier      ports.Notifier
	Sequencer     ports.Sequencer
	// Timeout bounds each provider call. Zero means defaultAITimeout.
	Timeout time.Duration
}

// AssistantService implements ports.AssistantService: session check, prompt,
// provider call, response parsing, persistence, usage update. Failures are
// toasted with the provider's remediation hint and returned.
type AssistantService struct {
	generators    ports.GeneratorRegistry
	switcher      ports.ProviderSwitch
	history       ports.HistoryRepository
	conversations ports.ConversationRepository
	usage         ports.UsageRecorder
	notifier      ports.Notifier
	seq           ports.Sequencer
	timeout       time.Duration
	now           func() time.Time
	log           zerolog.Logger
}

// NewAssistantService returns an AssistantService.
func NewAssistantService(deps AssistantDeps, log zerolog.Logger) *AssistantService {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultAITimeout
	}
	return &AssistantService{
		generators:    deps.Generators,
		switcher:      deps.Switch,
		history:       deps.History,
		conversations: deps.Conversations,
		usage:         deps.Usage,
		notifier:      deps.Notifier,
		seq:           deps.Sequencer,
		timeout:       timeout,
		now:           time.Now,
		log:           log,
	}
}

// Analyze reviews code and records the structured result.
func (s *AssistantService) Analyze(ctx context.Context, in ports.AnalyzeInput) (*domain.HistoryEntry, error) {
	if err := s.requireSession(ctx, in.ClientID, opAnalyze, in.Session); err != nil {
		return nil, err
	}
	return s.structured(ctx, in.ClientID, in.Session, opAnalyze, domain.KindAnalysis,
		in.Language, in.Code, analysisPrompt(in.Language, in.Code),
		ports.UsageDelta{Analyses: 1})
}

// Solve generates a solution for a described problem and records it.
func (s *AssistantService) Solve(ctx context.Context, in ports.SolveInput) (*domain.HistoryEntry, error) {
	if err := s.requireSession(ctx, in.ClientID, opSolve, in.Session); err != nil {
		return nil, err
	}
	return s.structured(ctx, in.ClientID, in.Session, opSolve, domain.KindSolution,
		in.Language, in.Problem, solvePrompt(in.Language, in.Problem),
		ports.UsageDelta{ProblemsSolved: 1})
}

func (s *AssistantService) structured(
	ctx context.Context,
	clientID string,
	sess *domain.Session,
	op string,
	kind domain.HistoryKind,
	language, input, prompt string,
	delta ports.UsageDelta,
) (*domain.HistoryEntry, error) {
	resp, gen, err := s.generate(ctx, clientID, op, prompt)
	if err != nil {
		return nil, err
	}

	result, err := ExtractJSONObject(resp.Text)
	if err != nil {
		return nil, s.fail(ctx, clientID, op, gen, "malformed", fmt.Errorf("%s: %w", op, err))
	}

	entry := &domain.HistoryEntry{
		ID:        ulid.Make().String(),
		UserID:    sess.UserID,
		Kind:      kind,
		Language:  language,
		Input:     input,
		Result:    result,
		Provider:  resp.Provider,
		CreatedAt: s.now().UTC(),
	}
	if err := s.history.Insert(ctx, entry); err != nil {
		return nil, s.fail(ctx, clientID, op, gen, "persist_error", fmt.Errorf("%s: save history: %w", op, err))
	}

	delta.UserID = sess.UserID
	delta.At = entry.CreatedAt
	s.usage.Record(delta)

	metrics.AIRequestsTotal.WithLabelValues(string(resp.Provider), op, "ok").Inc()
	s.log.Info().Str("user_id", sess.UserID).Str("operation", op).Str("provider", string(resp.Provider)).Msg("assistant request completed")
	return entry, nil
}

// Chat answers one user turn and appends both messages to the thread.
func (s *AssistantService) Chat(ctx context.Context, in ports.ChatInput) (*ports.ChatResult, error) {
	if err := s.requireSession(ctx, in.ClientID, opChat, in.Session); err != nil {
		return nil, err
	}
	userID := in.Session.UserID

	var (
		convo   *domain.Conversation
		history []domain.Message
	)
	if in.ConversationID != "" {
		c, err := s.conversations.FindConversation(ctx, in.ConversationID, userID)
		if err != nil {
			return nil, s.failLoad(ctx, in.ClientID, fmt.Errorf("chat: %w", err))
		}
		convo = c
		history, err = s.conversations.ListMessages(ctx, c.ID, userID, maxChatContext)
		if err != nil {
			return nil, s.failLoad(ctx, in.ClientID, fmt.Errorf("chat: load messages: %w", err))
		}
	}

	resp, gen, err := s.generate(ctx, in.ClientID, opChat, chatPrompt(history, in.Message))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if convo == nil {
		convo = &domain.Conversation{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     conversationTitle(in.Message),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.conversations.CreateConversation(ctx, convo); err != nil {
			return nil, s.fail(ctx, in.ClientID, opChat, gen, "persist_error", fmt.Errorf("chat: create conversation: %w", err))
		}
	}

	userMsg := &domain.Message{
		ID:             ulid.Make().String(),
		ConversationID: convo.ID,
		UserID:         userID,
		Role:           domain.RoleUser,
		Content:        in.Message,
		Timestamp:      now,
	}
	reply := &domain.Message{
		ID:             ulid.Make().String(),
		ConversationID: convo.ID,
		UserID:         userID,
		Role:           domain.RoleAssistant,
		Content:        resp.Text,
		Provider:       resp.Provider,
		Timestamp:      now.Add(time.Millisecond),
	}
	if err := s.conversations.AppendMessages(ctx, userMsg, reply); err != nil {
		return nil, s.fail(ctx, in.ClientID, opChat, gen, "persist_error", fmt.Errorf("chat: save messages: %w", err))
	}
	convo.UpdatedAt = reply.Timestamp

	s.usage.Record(ports.UsageDelta{UserID: userID, ChatMessages: 1, At: now})

	metrics.AIRequestsTotal.WithLabelValues(string(resp.Provider), opChat, "ok").Inc()
	return &ports.ChatResult{Conversation: convo, UserMessage: userMsg, Reply: reply}, nil
}

func (s *AssistantService) requireSession(ctx context.Context, clientID, op string, sess *domain.Session) error {
	if sess != nil {
		return nil
	}
	metrics.AIRequestsTotal.WithLabelValues("none", op, "unauthenticated").Inc()
	s.toast(ctx, clientID, opTitles[op], "Please sign in to use the assistant.")
	return domain.ErrUnauthenticated
}

// generate calls the provider selected at call time. A response is discarded
// with domain.ErrSuperseded when a newer request of the same kind was issued
// from this browser while it was in flight.
func (s *AssistantService) generate(ctx context.Context, clientID, op, prompt string) (domain.AIResponse, ports.Generator, error) {
	key := clientID + ":" + op
	reqID, err := s.seq.Next(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("client_id", clientID).Msg("request sequencing unavailable")
		reqID = 0
	}

	provider := s.switcher.Get(ctx, clientID)
	gen, err := s.generators.Get(provider)
	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(string(provider), op, "provider_error").Inc()
		s.toast(ctx, clientID, opTitles[op], "The selected AI provider is not available. Switch providers in settings.")
		return domain.AIResponse{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := gen.Generate(callCtx, prompt)
	metrics.AIRequestDuration.WithLabelValues(string(provider)).Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return domain.AIResponse{}, gen, s.fail(ctx, clientID, op, gen, "provider_error", fmt.Errorf("%s via %s: %w", op, provider, err))
	}

	if reqID > 0 {
		latest, err := s.seq.Latest(ctx, key)
		if err == nil && latest != reqID {
			metrics.AIRequestsTotal.WithLabelValues(string(provider), op, "superseded").Inc()
			s.log.Debug().Str("client_id", clientID).Str("operation", op).Int64("request_id", reqID).Int64("latest", latest).Msg("stale response discarded")
			return domain.AIResponse{}, gen, domain.ErrSuperseded
		}
	}

	if resp.Provider == "" {
		resp.Provider = provider
	}
	return resp, gen, nil
}

// fail records and toasts a failure and returns err for the caller.
func (s *AssistantService) fail(ctx context.Context, clientID, op string, gen ports.Generator, outcome string, err error) error {
	s.log.Error().Err(err).Str("client_id", clientID).Str("operation", op).Str("provider", string(gen.ID())).Msg("assistant request failed")
	metrics.AIRequestsTotal.WithLabelValues(string(gen.ID()), op, outcome).Inc()

	var msg string
	switch {
	case errors.Is(err, domain.ErrMalformedAIResponse):
		msg = gen.DisplayName() + " returned a response that could not be read. " + gen.Hint()
	case errors.Is(err, domain.ErrProviderUnavailable):
		msg = "Could not reach " + gen.DisplayName() + ". " + gen.Hint()
	default:
		msg = "Your request could not be saved. Please try again."
	}
	s.toast(ctx, clientID, opTitles[op], msg)
	return err
}

// failLoad reports a conversation that could not be opened before any
// provider was involved.
func (s *AssistantService) failLoad(ctx context.Context, clientID string, err error) error {
	s.log.Warn().Err(err).Str("client_id", clientID).Str("operation", opChat).Msg("conversation could not be loaded")
	msg := "The conversation could not be loaded. Please try again."
	if errors.Is(err, domain.ErrNotFound) {
		msg = "Conversation not found. Start a new chat."
	}
	s.toast(ctx, clientID, opTitles[opChat], msg)
	return err
}

func (s *AssistantService) toast(ctx context.Context, clientID, title, msg string) {
	t := domain.Toast{Level: domain.ToastError, Title: title, Message: msg, CreatedAt: s.now().UTC()}
	if err := s.notifier.Toast(ctx, clientID, t); err != nil {
		s.log.Warn().Err(err).Str("client_id", clientID).Msg("failed to queue toast")
	}
}
