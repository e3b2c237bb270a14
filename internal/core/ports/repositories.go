package ports

import (
	"context"
	"time"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// ProfileRepository persists user profiles.
type ProfileRepository interface {
	// Upsert creates the profile or refreshes its name and email.
	Upsert(ctx context.Context, p *domain.Profile) error
	FindByUserID(ctx context.Context, userID string) (*domain.Profile, error)
}

// UsageDelta is an increment applied to one user's counters.
type UsageDelta struct {
	UserID         string
	Analyses       int64
	ProblemsSolved int64
	ChatMessages   int64
	At             time.Time
}

// UsageTotals aggregates the counters of every user.
type UsageTotals struct {
	Users          int64
	Analyses       int64
	ProblemsSolved int64
	ChatMessages   int64
}

// UsageRepository persists usage counters.
type UsageRepository interface {
	Apply(ctx context.Context, d UsageDelta) error
	Get(ctx context.Context, userID string) (*domain.UsageStats, error)
	List(ctx context.Context, page, limit int) ([]domain.UsageStats, int64, error)
	Totals(ctx context.Context) (UsageTotals, error)
}

// HistoryFilter narrows a history listing.
type HistoryFilter struct {
	UserID string
	Kind   domain.HistoryKind // empty = all kinds
	Page   int                // 1-based
	Limit  int
}

// HistoryRepository persists analysis and solution records.
type HistoryRepository interface {
	Insert(ctx context.Context, e *domain.HistoryEntry) error
	List(ctx context.Context, f HistoryFilter) ([]domain.HistoryEntry, int64, error)
}

// ConversationRepository persists chat threads and their messages.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, c *domain.Conversation) error
	// FindConversation scopes the lookup to userID; other users' threads
	// are reported as domain.ErrNotFound.
	FindConversation(ctx context.Context, id, userID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)
	// AppendMessages inserts the messages in order and bumps the thread's
	// updated_at.
	AppendMessages(ctx context.Context, msgs ...*domain.Message) error
	ListMessages(ctx context.Context, conversationID, userID string, limit int) ([]domain.Message, error)
}
