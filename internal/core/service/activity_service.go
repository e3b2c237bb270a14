package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type ActivityService struct {
	history       ports.HistoryRepository
	conversations ports.ConversationRepository
	usage         ports.UsageRepository
	logger        zerolog.Logger
}

func NewActivityService(
	history ports.HistoryRepository,
	conversations ports.ConversationRepository,
	usage ports.UsageRepository,
	logger zerolog.Logger,
) *ActivityService {
	return &ActivityService{history: history, conversations: conversations, usage: usage, logger: logger}
}

// History lists a user's analyses and solutions, newest first.
func (s *ActivityService) History(ctx context.Context, userID string, kind domain.HistoryKind, p ports.Page) (*ports.HistoryPage, error) {
	if kind != "" && kind != domain.KindAnalysis && kind != domain.KindSolution {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidPreference, kind)
	}
	p = normalizePage(p)
	items, total, err := s.history.List(ctx, ports.HistoryFilter{UserID: userID, Kind: kind, Page: p.Page, Limit: p.Limit})
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return &ports.HistoryPage{Items: items, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

func (s *ActivityService) Conversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	return s.conversations.ListConversations(ctx, userID, clampLimit(limit))
}

// Messages lists a thread oldest first. Threads of other users read as not found.
func (s *ActivityService) Messages(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error) {
	if _, err := s.conversations.FindConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.conversations.ListMessages(ctx, conversationID, userID, clampLimit(limit))
}

// Stats returns the caller's counters. A user with no recorded activity gets
// zeroed counters.
func (s *ActivityService) Stats(ctx context.Context, userID string) (*domain.UsageStats, error) {
	st, err := s.usage.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.UsageStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get usage: %w", err)
	}
	return st, nil
}

func (s *ActivityService) AllStats(ctx context.Context, p ports.Page) (*ports.UsagePage, error) {
	p = normalizePage(p)
	items, total, err := s.usage.List(ctx, p.Page, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	return &ports.UsagePage{Items: items, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

func normalizePage(p ports.Page) ports.Page {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = clampLimit(p.Limit)
	return p
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageLimit
	case limit > maxPageLimit:
		return maxPageLimit
	}
	return limit
}
