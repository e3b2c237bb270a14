package ports

import (
	"context"
	"time"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// SessionStore persists sessions by id.
type SessionStore interface {
	Save(ctx context.Context, s *domain.Session, ttl time.Duration) error
	// Get returns domain.ErrSessionNotFound when the id is unknown or expired.
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

// PreferenceStore keeps browser-local preferences keyed by client id.
type PreferenceStore interface {
	// GetPreferences returns zero-valued fields for anything never set.
	GetPreferences(ctx context.Context, clientID string) (domain.Preferences, error)
	SetProvider(ctx context.Context, clientID string, p domain.AIProvider) error
	SetTheme(ctx context.Context, clientID string, t domain.Theme) error
}

// FlowStore keeps the auth modal state of each browser.
type FlowStore interface {
	// GetFlow returns a fresh signin state when nothing is stored.
	GetFlow(ctx context.Context, clientID string) (domain.AuthFlowState, error)
	SaveFlow(ctx context.Context, clientID string, st domain.AuthFlowState) error
	ClearFlow(ctx context.Context, clientID string) error
}

// PendingSignupStore holds at most one pending signup per browser.
type PendingSignupStore interface {
	Put(ctx context.Context, clientID string, p domain.PendingSignup) error
	// Take returns and deletes the pending signup; domain.ErrNotFound when
	// there is none.
	Take(ctx context.Context, clientID string) (*domain.PendingSignup, error)
}

// Notifier queues user-visible toasts for a browser.
type Notifier interface {
	Toast(ctx context.Context, clientID string, t domain.Toast) error
	Drain(ctx context.Context, clientID string) ([]domain.Toast, error)
}

// Sequencer hands out monotonically increasing request ids per key.
type Sequencer interface {
	Next(ctx context.Context, key string) (int64, error)
	Latest(ctx context.Context, key string) (int64, error)
}
