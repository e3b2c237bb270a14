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

// User-facing sentences shown inline in the auth modal.
const (
	MsgInvalidCredentials = "Invalid email or password. Please try again."
	MsgUnconfirmedEmail   = "Please confirm your email address first. Check your inbox for the verification link."
	MsgRateLimited        = "Too many attempts. Please wait a minute and try again."
	MsgPasswordMismatch   = "Passwords do not match."
	MsgPasswordTooShort   = "Password must be at least 6 characters long."
	MsgAdminVerification  = "Invalid admin credentials."
	MsgGeneric            = "Something went wrong. Please try again."
)

const (
	redirectDashboard = "/app/dashboard"
	redirectAdmin     = "/admin"
)

// AuthFlowService implements ports.AuthFlowService.
type AuthFlowService struct {
	identity ports.IdentityProvider
	sessions ports.SessionService
	flows    ports.FlowStore
	pending  ports.PendingSignupStore
	log      zerolog.Logger
}

// NewAuthFlowService wires the auth modal controller.
func NewAuthFlowService(
	identity ports.IdentityProvider,
	sessions ports.SessionService,
	flows ports.FlowStore,
	pending ports.PendingSignupStore,
	log zerolog.Logger,
) *AuthFlowService {
	return &AuthFlowService{
		identity: identity,
		sessions: sessions,
		flows:    flows,
		pending:  pending,
		log:      log,
	}
}

// State returns the current step of the browser's modal.
func (s *AuthFlowService) State(ctx context.Context, clientID string) (ports.FlowView, error) {
	st, err := s.flows.GetFlow(ctx, clientID)
	if err != nil {
		return ports.FlowView{}, fmt.Errorf("flow state: %w", err)
	}
	return view(st), nil
}

// Fire applies a navigation event. Cancel clears the form and closes the
// modal, which leaves it on signin.
func (s *AuthFlowService) Fire(ctx context.Context, clientID string, ev domain.AuthEvent) (ports.FlowView, error) {
	st, err := s.flows.GetFlow(ctx, clientID)
	if err != nil {
		return ports.FlowView{}, fmt.Errorf("flow event: %w", err)
	}

	next, err := st.Step.Next(ev)
	if err != nil {
		return view(st), fmt.Errorf("flow event %s from %s: %w", ev, st.Step, err)
	}

	if ev == domain.EventCancel {
		if err := s.flows.ClearFlow(ctx, clientID); err != nil {
			return ports.FlowView{}, fmt.Errorf("flow cancel: %w", err)
		}
		return view(domain.NewAuthFlowState()), nil
	}

	st.Step = next
	if err := s.flows.SaveFlow(ctx, clientID, st); err != nil {
		return ports.FlowView{}, fmt.Errorf("flow event: save: %w", err)
	}
	return view(st), nil
}

// Submit runs the single external operation behind the active step's form.
// Rejections are returned as a classified sentence in the result, not as an
// error; the error return is reserved for flow misuse and storage failures.
func (s *AuthFlowService) Submit(ctx context.Context, in ports.SubmitInput) (*ports.SubmitResult, error) {
	st, err := s.flows.GetFlow(ctx, in.ClientID)
	if err != nil {
		return nil, fmt.Errorf("flow submit: %w", err)
	}
	if !st.Step.Submittable() {
		return nil, fmt.Errorf("flow submit from %s: %w", st.Step, domain.ErrInvalidTransition)
	}

	in.Form.Email = strings.TrimSpace(in.Form.Email)

	var res *ports.SubmitResult
	switch st.Step {
	case domain.StepSignIn:
		res, err = s.submitSignIn(ctx, in, st)
	case domain.StepSignUp:
		res, err = s.submitSignUp(ctx, in, st)
	case domain.StepForgot:
		res, err = s.submitForgot(ctx, in, st)
	case domain.StepAdmin:
		res, err = s.submitAdmin(ctx, in, st)
	case domain.StepReset:
		res, err = s.submitReset(ctx, in, st)
	case domain.StepVerify:
		res, err = s.submitVerify(ctx, in, st)
	}
	if err != nil {
		return nil, err
	}

	outcome := "ok"
	if res.Error != "" {
		outcome = outcomeLabel(res.Error)
	}
	metrics.AuthSubmissionsTotal.WithLabelValues(string(st.Step), outcome).Inc()
	return res, nil
}

func (s *AuthFlowService) submitSignIn(ctx context.Context, in ports.SubmitInput, st domain.AuthFlowState) (*ports.SubmitResult, error) {
	tokens, err := s.identity.SignIn(ctx, in.Form.Email, in.Form.Password)
	if err != nil {
		return s.reject(ctx, in, st, err)
	}
	return s.signedIn(ctx, in, st, tokens, redirectDashboard)
}

// submitSignUp stores the signup details and sends a magic link; the
// account materializes when the link is followed.
func (s *AuthFlowService) submitSignUp(ctx context.Context, in ports.SubmitInput, st domain.AuthFlowState) (*ports.SubmitResult, error) {
	if in.Form.ConfirmPassword != "" && in.Form.Password != in.Form.ConfirmPassword {
		return s.reject(ctx, in, st, domain.ErrPasswordMismatch)
	}
	if len(in.Form.Password) < domain.MinPasswordLength {
		return s.reject(ctx, in, st, domain.ErrPasswordTooShort)
	}

	pending := domain.PendingSignup{
		Email:     in.Form.Email,
		FullName:  strings.TrimSpace(in.Form.FullName),
		Password:  in.Form.Password,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.pending.Put(ctx, in.ClientID, pending); err != nil {
		return s.reject(ctx, in, st, fmt.Errorf("store pending signup: %w", err))
	}

	meta := map[string]string{"full_name": pending.FullName}
	if err := s.identity.SendMagicLink(ctx, in.Form.Email, true, meta); err != nil {
		if _, takeErr := s.pending.Take(ctx, in.ClientID); takeErr != nil && !errors.Is(takeErr, domain.ErrNotFound) {
			s.log.Warn().Err(takeErr).Str("client_id", in.ClientID).Msg("failed to discard pending signup")
		}
		return s.reject(ctx, in, st, err)
	}

	s.log.Info().Str("client_id", in.ClientID).Msg("signup magic link sent")
	return s.advance(ctx, in, st, "Check your email for a link to finish creating your account.")
}

func (s *AuthFlowService) submitForgot(ctx context.Context, in ports.SubmitInput, st domain.AuthFlowState) (*ports.SubmitResult, error) {
	var err error
	notice := "Check your email for a sign-in link."
	if in.Mode == ports.ModePasswordReset {
		err = s.identity.ResetPassword(ctx, in.Form.Email)
		notice = "Check your email for a link to reset your password."
	} else {
		err = s.identity.SendMagicLink(ctx, in.Form.Email, false, nil)
	}
	if err != nil {
		return s.reject(ctx, in, st, err)
	}
	return s.advance(ctx, in, st, notice)
}

// submitAdmin requires both the admin RPC and an ordinary sign-in to
// succeed, so claiming admin never substitutes for being signed in.
func (s *AuthFlowService) submitAdmin(ctx context.Context, in ports.SubmitInput, st domain.AuthFlowState) (*ports.SubmitResult, error) {
	ok, err := s.identity.VerifyAdminCredentials(ctx, in.Form.Email, in.Form.Password)
	if err != nil {
		return s.reject(ctx, in, st, err)
	}
	if !ok {
		return s.reject(ctx, in, st, domain.ErrAdminVerificationFailed)
	}

	tokens, err := s.identity.SignIn(ctx, in.Form.Email, in.Form.Password)
	if err != nil {
		return s.reject(ctx, in, st, err)
	}
	return s.signedIn(ctx, in, st, tokens, redirectAdmin)
}

// submitReset validates locally before touching the provider.
func (s *AuthFlowService) submitReset(ctx context.Context, in ports.SubmitInput, st domain.AuthFlowState) (*ports.SubmitResult, error) {
	if in.Form.Password != in.Form.ConfirmPassword {
		return s.reject(ctx, in, st, domain.ErrPasswordMismatch)
	}
	if len(in.Form.Password) < domain.MinPasswordLength {
		return s.reject(ctx, in, st, domain.ErrPasswordTooShort)
	}

	sess := s.sessions.Current(ctx, st.RecoverySessionID)
	if sess == nil {
		return s.reject(ctx, in, st, domain.ErrUnauthenticated)
	}

	if err := s.identity.UpdateUser(ctx, sess.AccessToken, ports.UserAttributes{Password: in.Form.Password}); err != nil {
		return s.reject(ctx, in, st, err)
	}
	if err := s.sessions.SignOut(ctx, sess.ID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to close recovery session")
	}

	st.RecoverySessionID = ""
	return s.advance(ctx, in, st, "Password updated. Please sign in with your new password.")
}

func (s *AuthFlowService) submitVerify(ctx context.Context, in ports.SubmitInput, st domain.AuthFlowState) (*ports.SubmitResult, error) {
	email := in.Form.Email
	if email == "" {
		email = st.Email
	}
	if err := s.identity.ResendVerification(ctx, email); err != nil {
		return s.reject(ctx, in, st, err)
	}
	in.Form.Email = email
	return s.advance(ctx, in, st, "Verification email sent. Check your inbox.")
}

// advance moves to the step a successful submission leads to.
func (s *AuthFlowService) advance(ctx context.Context, in ports.SubmitInput, st domain.AuthFlowState, notice string) (*ports.SubmitResult, error) {
	next, err := st.Step.AfterSubmit()
	if err != nil {
		return nil, err
	}
	st.Step = next
	st.Email = in.Form.Email
	if err := s.flows.SaveFlow(ctx, in.ClientID, st); err != nil {
		return nil, fmt.Errorf("flow submit: save: %w", err)
	}
	return &ports.SubmitResult{Step: next, Notice: notice}, nil
}

// signedIn establishes the session and closes the modal.
func (s *AuthFlowService) signedIn(ctx context.Context, in ports.SubmitInput, st domain.AuthFlowState, tokens domain.Tokens, redirect string) (*ports.SubmitResult, error) {
	sess, err := s.sessions.Establish(ctx, tokens)
	if err != nil {
		return s.reject(ctx, in, st, err)
	}
	if err := s.flows.ClearFlow(ctx, in.ClientID); err != nil {
		s.log.Warn().Err(err).Str("client_id", in.ClientID).Msg("failed to reset auth flow")
	}
	return &ports.SubmitResult{Step: domain.StepSignIn, Session: sess, Redirect: redirect}, nil
}

// reject classifies err into the inline message. An unconfirmed email also
// moves the modal to the matching informational step.
func (s *AuthFlowService) reject(ctx context.Context, in ports.SubmitInput, st domain.AuthFlowState, err error) (*ports.SubmitResult, error) {
	msg, kind := ClassifyAuthError(err)
	if kind == nil {
		s.log.Warn().Err(err).Str("step", string(st.Step)).Str("client_id", in.ClientID).Msg("auth submission failed")
	}

	if errors.Is(kind, domain.ErrUnconfirmedEmail) {
		st.Step = st.Step.AfterUnconfirmed()
		st.Email = in.Form.Email
		if err := s.flows.SaveFlow(ctx, in.ClientID, st); err != nil {
			return nil, fmt.Errorf("flow submit: save: %w", err)
		}
	}
	return &ports.SubmitResult{Step: st.Step, Error: msg}, nil
}

// ClassifyAuthError maps an auth failure to one of the fixed sentences and
// the matching sentinel, which is nil for the generic case.
func ClassifyAuthError(err error) (string, error) {
	for _, known := range []error{
		domain.ErrInvalidCredentials,
		domain.ErrUnconfirmedEmail,
		domain.ErrRateLimited,
		domain.ErrPasswordMismatch,
		domain.ErrPasswordTooShort,
		domain.ErrAdminVerificationFailed,
	} {
		if errors.Is(err, known) {
			return authMessages[known], known
		}
	}

	var ie *ports.IdentityError
	if errors.As(err, &ie) {
		msg := strings.ToLower(ie.Message + " " + ie.Code)
		switch {
		case strings.Contains(msg, "invalid login credentials"),
			strings.Contains(msg, "invalid_credentials"),
			strings.Contains(msg, "invalid email or password"):
			return MsgInvalidCredentials, domain.ErrInvalidCredentials
		case strings.Contains(msg, "email not confirmed"),
			strings.Contains(msg, "email_not_confirmed"):
			return MsgUnconfirmedEmail, domain.ErrUnconfirmedEmail
		case ie.Status == 429,
			strings.Contains(msg, "rate limit"),
			strings.Contains(msg, "for security purposes"),
			strings.Contains(msg, "too many"):
			return MsgRateLimited, domain.ErrRateLimited
		case strings.Contains(msg, "at least 6 characters"),
			strings.Contains(msg, "weak_password"):
			return MsgPasswordTooShort, domain.ErrPasswordTooShort
		}
	}
	return MsgGeneric, nil
}

var authMessages = map[error]string{
	domain.ErrInvalidCredentials:      MsgInvalidCredentials,
	domain.ErrUnconfirmedEmail:        MsgUnconfirmedEmail,
	domain.ErrRateLimited:             MsgRateLimited,
	domain.ErrPasswordMismatch:        MsgPasswordMismatch,
	domain.ErrPasswordTooShort:        MsgPasswordTooShort,
	domain.ErrAdminVerificationFailed: MsgAdminVerification,
}

func outcomeLabel(msg string) string {
	switch msg {
	case MsgInvalidCredentials:
		return "invalid_credentials"
	case MsgUnconfirmedEmail:
		return "unconfirmed_email"
	case MsgRateLimited:
		return "rate_limited"
	case MsgPasswordMismatch:
		return "password_mismatch"
	case MsgPasswordTooShort:
		return "password_too_short"
	case MsgAdminVerification:
		return "admin_verification_failed"
	default:
		return "error"
	}
}

func view(st domain.AuthFlowState) ports.FlowView {
	return ports.FlowView{Step: st.Step, Email: st.Email}
}
