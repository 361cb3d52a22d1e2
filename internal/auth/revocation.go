package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers revoked token ids until the tokens expire
type RevocationStore interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string, exp time.Time) error
}

// InMemoryRevocationStore is a process-local RevocationStore
type InMemoryRevocationStore struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

// NewInMemoryRevocationStore creates a store and purges expired entries every
// interval until ctx is done
func NewInMemoryRevocationStore(ctx context.Context, interval time.Duration) *InMemoryRevocationStore {
	store := &InMemoryRevocationStore{revoked: make(map[string]time.Time)}
	go store.cleanUpLoop(ctx, interval)
	return store
}

func (s *InMemoryRevocationStore) cleanUpLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.CleanUpExpired(now)
		}
	}
}

// CleanUpExpired drops entries whose token expired before now
func (s *InMemoryRevocationStore) CleanUpExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, jti)
		}
	}
}

// IsRevoked implements RevocationStore
func (s *InMemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.revoked[jti]
	return exists, nil
}

// Revoke implements RevocationStore
func (s *InMemoryRevocationStore) Revoke(_ context.Context, jti string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[jti] = exp
	return nil
}

// RedisRevocationStore shares revocations between instances. Keys expire with
// the token.
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationStore creates a store on client
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, prefix: "talentpipe:revoked:"}
}

// IsRevoked implements RevocationStore
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, "check revoked token")
	}
	return n > 0, nil
}

// Revoke implements RevocationStore
func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(s.client.Set(ctx, s.prefix+jti, 1, ttl).Err(), "revoke token")
}
