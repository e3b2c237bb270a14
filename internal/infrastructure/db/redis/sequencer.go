package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// seqTTL bounds how long an idle counter survives; it only has to outlive
// the slowest in-flight request.
const seqTTL = time.Hour

// Sequencer hands out per-key request ids backed by INCR, so ids stay
// monotonic across every API replica.
// Key format: seq:<client_id>:<operation>
type Sequencer struct {
	client *redis.Client
}

// NewSequencer creates a Sequencer wrapping the given Redis client.
func NewSequencer(client *redis.Client) *Sequencer {
	return &Sequencer{client: client}
}

// Next issues a new id for key.
func (s *Sequencer) Next(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, s.key(key))
		pipe.Expire(ctx, s.key(key), seqTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sequence next: %w", err)
	}
	return incr.Val(), nil
}

// Latest returns the most recently issued id for key, 0 when none.
func (s *Sequencer) Latest(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, s.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sequence latest: %w", err)
	}
	return n, nil
}

func (s *Sequencer) key(key string) string {
	return prefixSeq + key
}
