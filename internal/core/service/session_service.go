package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/events"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

const (
	defaultRefreshWindow = 2 * time.Minute
	// defaultAccessTokenLifetime applies when tokens arrive without an expiry,
	// as they do on email-link callbacks.
	defaultAccessTokenLifetime = time.Hour
)

// SessionService implements ports.SessionService on top of a SessionStore
// and the identity provider.
type SessionService struct {
	identity      ports.IdentityProvider
	store         ports.SessionStore
	bus           *events.Bus[domain.SessionEvent]
	ttl           time.Duration
	refreshWindow time.Duration
	now           func() time.Time
	log           zerolog.Logger
}

// NewSessionService returns a SessionService whose sessions live for ttl.
func NewSessionService(identity ports.IdentityProvider, store ports.SessionStore, ttl time.Duration, log zerolog.Logger) *SessionService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionService{
		identity:      identity,
		store:         store,
		bus:           events.NewBus[domain.SessionEvent](),
		ttl:           ttl,
		refreshWindow: defaultRefreshWindow,
		now:           time.Now,
		log:           log,
	}
}

// Establish turns provider tokens into a stored session.
func (s *SessionService) Establish(ctx context.Context, tokens domain.Tokens) (*domain.Session, error) {
	if tokens.AccessToken == "" {
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.identity.GetUser(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}

	expiresAt := tokens.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(defaultAccessTokenLifetime)
	}

	sess := &domain.Session{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		ExpiresAt:     expiresAt,
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
	}
	if err := s.store.Save(ctx, sess, s.ttl); err != nil {
		return nil, fmt.Errorf("establish session: save: %w", err)
	}

	s.log.Info().Str("user_id", sess.UserID).Str("session_id", sess.ID).Msg("session established")
	s.bus.Publish(domain.SessionEvent{Type: domain.SessionSignedIn, SessionID: sess.ID, Session: sess})
	return sess, nil
}

// Current returns the session or nil. Store and provider failures are
// logged and read as "logged out".
func (s *SessionService) Current(ctx context.Context, sessionID string) *domain.Session {
	if sessionID == "" {
		return nil
	}

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("session lookup failed")
		}
		return nil
	}

	if !sess.ExpiresWithin(s.now(), s.refreshWindow) {
		return sess
	}
	if sess.RefreshToken == "" {
		if sess.Expired(s.now()) {
			s.drop(ctx, sessionID)
			return nil
		}
		return sess
	}

	tokens, err := s.identity.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("token refresh failed")
		s.drop(ctx, sessionID)
		return nil
	}

	sess.AccessToken = tokens.AccessToken
	sess.ExpiresAt = tokens.ExpiresAt
	if tokens.RefreshToken != "" {
		sess.RefreshToken = tokens.RefreshToken
	}
	if err := s.store.Save(ctx, sess, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to save refreshed session")
	}

	s.bus.Publish(domain.SessionEvent{Type: domain.SessionTokenRefreshed, SessionID: sess.ID, Session: sess})
	return sess
}

// SignOut revokes the provider session (best effort) and forgets it.
func (s *SessionService) SignOut(ctx context.Context, sessionID string) error {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("sign out: %w", err)
	}

	if err := s.identity.SignOut(ctx, sess.AccessToken); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("provider sign-out failed")
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("sign out: delete: %w", err)
	}

	s.log.Info().Str("user_id", sess.UserID).Str("session_id", sessionID).Msg("signed out")
	s.bus.Publish(domain.SessionEvent{Type: domain.SessionSignedOut, SessionID: sessionID})
	return nil
}

// Subscribe registers fn for every session change.
func (s *SessionService) Subscribe(fn func(domain.SessionEvent)) func() {
	return s.bus.Subscribe(fn)
}

func (s *SessionService) drop(ctx context.Context, sessionID string) {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to delete session")
	}
	s.bus.Publish(domain.SessionEvent{Type: domain.SessionSignedOut, SessionID: sessionID})
}
