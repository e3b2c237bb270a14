package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

const (
	maxToasts = 20
	toastTTL  = 10 * time.Minute
)

// Notifier queues toasts in a capped per-browser list.
// Key format: toasts:<client_id>
type Notifier struct {
	client *redis.Client
}

// NewNotifier creates a Notifier wrapping the given Redis client.
func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

// Toast appends t, keeping only the newest maxToasts entries.
func (n *Notifier) Toast(ctx context.Context, clientID string, t domain.Toast) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode toast: %w", err)
	}
	key := prefixToasts + clientID
	_, err = n.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, b)
		pipe.LTrim(ctx, key, -maxToasts, -1)
		pipe.Expire(ctx, key, toastTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("queue toast: %w", err)
	}
	return nil
}

// Drain returns and removes every queued toast, oldest first.
func (n *Notifier) Drain(ctx context.Context, clientID string) ([]domain.Toast, error) {
	key := prefixToasts + clientID
	var lrange *redis.StringSliceCmd
	_, err := n.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain toasts: %w", err)
	}

	raw := lrange.Val()
	toasts := make([]domain.Toast, 0, len(raw))
	for _, r := range raw {
		var t domain.Toast
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			continue
		}
		toasts = append(toasts, t)
	}
	return toasts, nil
}
