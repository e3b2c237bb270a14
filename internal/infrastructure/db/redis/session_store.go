package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// sessionRecord is the stored form of a session. Unlike domain.Session it
// keeps the provider tokens.
type sessionRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	ExpiresAt     time.Time `json:"expires_at"`
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
}

// SessionStore keeps sessions as JSON strings.
// Key format: session:<session_id>
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a SessionStore wrapping the given Redis client.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Save(ctx context.Context, sess *domain.Session, ttl time.Duration) error {
	b, err := json.Marshal(sessionRecord{
		ID:            sess.ID,
		UserID:        sess.UserID,
		Email:         sess.Email,
		EmailVerified: sess.EmailVerified,
		ExpiresAt:     sess.ExpiresAt,
		AccessToken:   sess.AccessToken,
		RefreshToken:  sess.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, prefixSession+sess.ID, b, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	b, err := s.client.Get(ctx, prefixSession+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &domain.Session{
		ID:            rec.ID,
		UserID:        rec.UserID,
		Email:         rec.Email,
		EmailVerified: rec.EmailVerified,
		ExpiresAt:     rec.ExpiresAt,
		AccessToken:   rec.AccessToken,
		RefreshToken:  rec.RefreshToken,
	}, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, prefixSession+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
