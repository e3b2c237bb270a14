package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

const (
	// adminCacheTTL caps how long an answer is reused when the session
	// carries no expiry of its own.
	adminCacheTTL = time.Hour
	// adminCacheSweepAt is the size at which inserts evict expired entries.
	adminCacheSweepAt = 1024
	// adminCacheMax is a hard ceiling; the cache is reset when a sweep
	// leaves it above this size.
	adminCacheMax = 10000
)

type adminEntry struct {
	isAdmin   bool
	expiresAt time.Time
}

// AdminResolver caches the admin RPC answer per session. Under-granting is
// the failure mode: any RPC error reads as "not an admin".
type AdminResolver struct {
	identity ports.IdentityProvider
	log      zerolog.Logger

	mu    sync.Mutex
	cache map[string]adminEntry
	now   func() time.Time

	unsubscribe func()
}

// NewAdminResolver returns a resolver whose cache follows the session
// lifecycle published by sessions.
func NewAdminResolver(identity ports.IdentityProvider, sessions ports.SessionService, log zerolog.Logger) *AdminResolver {
	r := &AdminResolver{
		identity: identity,
		log:      log,
		cache:    make(map[string]adminEntry),
		now:      time.Now,
	}
	r.unsubscribe = sessions.Subscribe(func(ev domain.SessionEvent) {
		r.mu.Lock()
		delete(r.cache, ev.SessionID)
		r.mu.Unlock()
	})
	return r
}

// IsAdmin returns the cached admin flag for s, asking the provider once per
// session. An entry lives until the session's access token expires, at most
// adminCacheTTL.
func (r *AdminResolver) IsAdmin(ctx context.Context, s *domain.Session) bool {
	if s == nil {
		return false
	}

	now := r.now()
	r.mu.Lock()
	e, ok := r.cache[s.ID]
	if ok && !now.Before(e.expiresAt) {
		delete(r.cache, s.ID)
		ok = false
	}
	r.mu.Unlock()
	if ok {
		return e.isAdmin
	}

	isAdmin, err := r.identity.IsAdmin(ctx, s.Email)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", s.UserID).Msg("admin check failed")
		return false
	}

	expiresAt := now.Add(adminCacheTTL)
	if !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(expiresAt) {
		expiresAt = s.ExpiresAt
	}

	r.mu.Lock()
	if len(r.cache) >= adminCacheSweepAt {
		r.sweepLocked(now)
	}
	r.cache[s.ID] = adminEntry{isAdmin: isAdmin, expiresAt: expiresAt}
	r.mu.Unlock()
	return isAdmin
}

// sweepLocked drops expired entries. Callers hold r.mu.
func (r *AdminResolver) sweepLocked(now time.Time) {
	for id, e := range r.cache {
		if !now.Before(e.expiresAt) {
			delete(r.cache, id)
		}
	}
	if len(r.cache) >= adminCacheMax {
		r.log.Warn().Int("entries", len(r.cache)).Msg("admin cache full, resetting")
		r.cache = make(map[string]adminEntry)
	}
}

// Verify asks the provider without consulting the cache.
func (r *AdminResolver) Verify(ctx context.Context, s *domain.Session) bool {
	if s == nil {
		return false
	}
	isAdmin, err := r.identity.IsAdmin(ctx, s.Email)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", s.UserID).Msg("admin verification failed")
		return false
	}
	return isAdmin
}

// Close detaches the resolver from session events.
func (r *AdminResolver) Close() {
	r.unsubscribe()
}
