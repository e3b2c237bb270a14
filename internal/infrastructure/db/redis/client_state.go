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

const (
	// prefsTTL is refreshed on every write, so only abandoned browsers expire.
	prefsTTL = 180 * 24 * time.Hour
	flowTTL  = 24 * time.Hour

	fieldProvider = "provider"
	fieldTheme    = "theme"
)

// ClientState keeps the per-browser state: preferences in a hash and the
// auth modal state as JSON.
// Key formats: prefs:<client_id>, flow:<client_id>
type ClientState struct {
	client *redis.Client
}

// NewClientState creates a ClientState wrapping the given Redis client.
func NewClientState(client *redis.Client) *ClientState {
	return &ClientState{client: client}
}

func (c *ClientState) GetPreferences(ctx context.Context, clientID string) (domain.Preferences, error) {
	vals, err := c.client.HGetAll(ctx, prefixPrefs+clientID).Result()
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return domain.Preferences{
		Provider: domain.AIProvider(vals[fieldProvider]),
		Theme:    domain.Theme(vals[fieldTheme]),
	}, nil
}

func (c *ClientState) SetProvider(ctx context.Context, clientID string, p domain.AIProvider) error {
	return c.setPref(ctx, clientID, fieldProvider, string(p))
}

func (c *ClientState) SetTheme(ctx context.Context, clientID string, t domain.Theme) error {
	return c.setPref(ctx, clientID, fieldTheme, string(t))
}

func (c *ClientState) setPref(ctx context.Context, clientID, field, value string) error {
	key := prefixPrefs + clientID
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, value)
		pipe.Expire(ctx, key, prefsTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", field, err)
	}
	return nil
}

func (c *ClientState) GetFlow(ctx context.Context, clientID string) (domain.AuthFlowState, error) {
	b, err := c.client.Get(ctx, prefixFlow+clientID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewAuthFlowState(), nil
	}
	if err != nil {
		return domain.AuthFlowState{}, fmt.Errorf("get flow: %w", err)
	}

	var st domain.AuthFlowState
	if err := json.Unmarshal(b, &st); err != nil || !st.Step.Valid() {
		// unreadable state restarts the modal
		return domain.NewAuthFlowState(), nil
	}
	return st, nil
}

func (c *ClientState) SaveFlow(ctx context.Context, clientID string, st domain.AuthFlowState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode flow: %w", err)
	}
	if err := c.client.Set(ctx, prefixFlow+clientID, b, flowTTL).Err(); err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	return nil
}

func (c *ClientState) ClearFlow(ctx context.Context, clientID string) error {
	if err := c.client.Del(ctx, prefixFlow+clientID).Err(); err != nil {
		return fmt.Errorf("clear flow: %w", err)
	}
	return nil
}
