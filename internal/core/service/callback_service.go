package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
	"github.com/codepilot/assistant-api/internal/metrics"
)

const (
	redirectHome          = "/"
	redirectResetPassword = "/reset-password"
)

// CallbackService implements ports.CallbackService. Every branch resolves to
// a redirect; failures become a toast and a redirect home.
type CallbackService struct {
	identity ports.IdentityProvider
	sessions ports.SessionService
	flows    ports.FlowStore
	pending  ports.PendingSignupStore
	profiles ports.ProfileRepository
	usage    ports.UsageRepository
	notifier ports.Notifier
	log      zerolog.Logger
}

// CallbackDeps groups the collaborators of CallbackService.
type CallbackDeps struct {
	Identity ports.IdentityProvider
	Sessions ports.SessionService
	Flows    ports.FlowStore
	Pending  ports.PendingSignupStore
	Profiles ports.ProfileRepository
	Usage    ports.UsageRepository
	Notifier ports.Notifier
}

// NewCallbackService returns a CallbackService.
func NewCallbackService(deps CallbackDeps, log zerolog.Logger) *CallbackService {
	return &CallbackService{
		identity: deps.Identity,
		sessions: deps.Sessions,
		flows:    deps.Flows,
		pending:  deps.Pending,
		profiles: deps.Profiles,
		usage:    deps.Usage,
		notifier: deps.Notifier,
		log:      log,
	}
}

// Handle dispatches on the callback parameters in priority order:
// signup OTP, recovery, bare token pair, nothing.
func (s *CallbackService) Handle(ctx context.Context, clientID string, p ports.CallbackParams) (out ports.CallbackOutcome) {
	branch := callbackBranch(p)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("branch", branch).Str("client_id", clientID).Msg("auth callback panicked")
			out = s.fail(ctx, clientID, branch, fmt.Errorf("panic: %v", r))
		}
	}()

	switch branch {
	case "signup":
		return s.handleSignup(ctx, clientID, p)
	case "recovery":
		return s.handleRecovery(ctx, clientID, p)
	case "tokens":
		return s.handleTokens(ctx, clientID, p)
	}

	metrics.CallbackDispatchTotal.WithLabelValues(branch, "ok").Inc()
	return ports.CallbackOutcome{Redirect: redirectHome}
}

func callbackBranch(p ports.CallbackParams) string {
	switch {
	case p.Token != "" && p.Type == ports.OTPSignup:
		return "signup"
	case p.Type == ports.OTPRecovery && (p.AccessToken != "" || p.Token != ""):
		return "recovery"
	case p.AccessToken != "" && p.RefreshToken != "":
		return "tokens"
	default:
		return "none"
	}
}

func (s *CallbackService) handleSignup(ctx context.Context, clientID string, p ports.CallbackParams) ports.CallbackOutcome {
	tokens, err := s.identity.VerifyOTP(ctx, ports.OTPSignup, p.Token)
	if err != nil {
		return s.fail(ctx, clientID, "signup", fmt.Errorf("verify signup otp: %w", err))
	}

	sess, err := s.sessions.Establish(ctx, tokens)
	if err != nil {
		return s.fail(ctx, clientID, "signup", err)
	}
	s.materialize(ctx, clientID, sess)

	s.toast(ctx, clientID, domain.ToastSuccess, "Email verified", "Your account is ready.")
	metrics.CallbackDispatchTotal.WithLabelValues("signup", "ok").Inc()
	return ports.CallbackOutcome{Redirect: redirectDashboard, Session: sess}
}

// handleRecovery opens a recovery session that only the reset step may use;
// the browser is not signed in by it.
func (s *CallbackService) handleRecovery(ctx context.Context, clientID string, p ports.CallbackParams) ports.CallbackOutcome {
	tokens := domain.Tokens{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
	if p.AccessToken == "" {
		var err error
		tokens, err = s.identity.VerifyOTP(ctx, ports.OTPRecovery, p.Token)
		if err != nil {
			return s.fail(ctx, clientID, "recovery", fmt.Errorf("verify recovery otp: %w", err))
		}
	}

	sess, err := s.sessions.Establish(ctx, tokens)
	if err != nil {
		return s.fail(ctx, clientID, "recovery", err)
	}

	st := domain.AuthFlowState{
		Step:              domain.StepReset,
		Email:             sess.Email,
		RecoverySessionID: sess.ID,
	}
	if err := s.flows.SaveFlow(ctx, clientID, st); err != nil {
		return s.fail(ctx, clientID, "recovery", fmt.Errorf("save recovery flow: %w", err))
	}

	metrics.CallbackDispatchTotal.WithLabelValues("recovery", "ok").Inc()
	return ports.CallbackOutcome{Redirect: redirectResetPassword}
}

func (s *CallbackService) handleTokens(ctx context.Context, clientID string, p ports.CallbackParams) ports.CallbackOutcome {
	sess, err := s.sessions.Establish(ctx, domain.Tokens{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken})
	if err != nil {
		return s.fail(ctx, clientID, "tokens", err)
	}
	s.materialize(ctx, clientID, sess)

	metrics.CallbackDispatchTotal.WithLabelValues("tokens", "ok").Inc()
	return ports.CallbackOutcome{Redirect: redirectDashboard, Session: sess}
}

// materialize completes a magic-link signup started from this browser: the
// stored password and name are applied to the new account and its profile
// and usage rows are created. Failures here do not undo the sign-in.
func (s *CallbackService) materialize(ctx context.Context, clientID string, sess *domain.Session) {
	pending, err := s.pending.Take(ctx, clientID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Str("client_id", clientID).Msg("failed to load pending signup")
		}
		return
	}
	if !strings.EqualFold(pending.Email, sess.Email) {
		s.log.Warn().Str("client_id", clientID).Str("user_id", sess.UserID).Msg("pending signup belongs to another email, discarded")
		return
	}

	attrs := ports.UserAttributes{Password: pending.Password, FullName: pending.FullName}
	if err := s.identity.UpdateUser(ctx, sess.AccessToken, attrs); err != nil {
		s.log.Error().Err(err).Str("user_id", sess.UserID).Msg("failed to apply signup details")
		s.toast(ctx, clientID, domain.ToastError, "Account setup incomplete", "We could not save your password. Use \"Forgot password\" to set one.")
	}

	now := time.Now().UTC()
	profile := &domain.Profile{
		UserID:    sess.UserID,
		Email:     sess.Email,
		FullName:  pending.FullName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		s.log.Error().Err(err).Str("user_id", sess.UserID).Msg("failed to create profile")
	}
	if err := s.usage.Apply(ctx, ports.UsageDelta{UserID: sess.UserID, At: now}); err != nil {
		s.log.Error().Err(err).Str("user_id", sess.UserID).Msg("failed to initialise usage stats")
	}

	s.log.Info().Str("user_id", sess.UserID).Msg("account materialized")
}

func (s *CallbackService) fail(ctx context.Context, clientID, branch string, err error) ports.CallbackOutcome {
	s.log.Warn().Err(err).Str("branch", branch).Str("client_id", clientID).Msg("auth callback failed")
	metrics.CallbackDispatchTotal.WithLabelValues(branch, "error").Inc()
	s.toast(ctx, clientID, domain.ToastError, "Authentication failed", "The link is invalid or has expired. Please request a new one.")
	return ports.CallbackOutcome{Redirect: redirectHome}
}

func (s *CallbackService) toast(ctx context.Context, clientID string, level domain.ToastLevel, title, msg string) {
	t := domain.Toast{Level: level, Title: title, Message: msg, CreatedAt: time.Now().UTC()}
	if err := s.notifier.Toast(ctx, clientID, t); err != nil {
		s.log.Warn().Err(err).Str("client_id", clientID).Msg("failed to queue toast")
	}
}
