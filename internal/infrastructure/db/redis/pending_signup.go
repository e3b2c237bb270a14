package redis

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

const defaultPendingTTL = time.Hour

// pendingRecord is the plaintext sealed into Redis.
type pendingRecord struct {
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingSignupStore keeps at most one pending signup per browser, sealed
// with XChaCha20-Poly1305 under a server key. The client id is bound as
// additional data so a record cannot be replayed under another browser.
// Key format: pending:<client_id>
type PendingSignupStore struct {
	client *redis.Client
	aead   cipher.AEAD
	ttl    time.Duration
}

// NewPendingSignupStore creates a store sealing with key, which must be
// chacha20poly1305.KeySize bytes long.
func NewPendingSignupStore(client *redis.Client, key []byte, ttl time.Duration) (*PendingSignupStore, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("pending signup key: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &PendingSignupStore{client: client, aead: aead, ttl: ttl}, nil
}

// Put replaces any earlier pending signup of the browser.
func (s *PendingSignupStore) Put(ctx context.Context, clientID string, p domain.PendingSignup) error {
	sealed, err := s.seal(clientID, pendingRecord{
		Email:     p.Email,
		FullName:  p.FullName,
		Password:  p.Password,
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, prefixPending+clientID, sealed, s.ttl).Err(); err != nil {
		return fmt.Errorf("save pending signup: %w", err)
	}
	return nil
}

// Take atomically reads and deletes the pending signup.
func (s *PendingSignupStore) Take(ctx context.Context, clientID string) (*domain.PendingSignup, error) {
	b, err := s.client.GetDel(ctx, prefixPending+clientID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("take pending signup: %w", err)
	}

	rec, err := s.open(clientID, b)
	if err != nil {
		return nil, err
	}
	return &domain.PendingSignup{
		Email:     rec.Email,
		FullName:  rec.FullName,
		Password:  rec.Password,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *PendingSignupStore) seal(clientID string, rec pendingRecord) ([]byte, error) {
	plain, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode pending signup: %w", err)
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("pending signup nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plain, []byte(clientID)), nil
}

func (s *PendingSignupStore) open(clientID string, sealed []byte) (pendingRecord, error) {
	var rec pendingRecord
	if len(sealed) < s.aead.NonceSize() {
		return rec, fmt.Errorf("open pending signup: short record")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(clientID))
	if err != nil {
		return rec, fmt.Errorf("open pending signup: %w", err)
	}
	if err := json.Unmarshal(plain, &rec); err != nil {
		return rec, fmt.Errorf("decode pending signup: %w", err)
	}
	return rec, nil
}
