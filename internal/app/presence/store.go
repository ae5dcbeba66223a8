package presence

import (
	"context"
	"sync"
	"time"

	redisprovider "backend/internal/providers/redis"

	"github.com/redis/go-redis/v9"
)

// Store is the ephemeral TTL key/value the tracker runs on. Last writer
// wins per key; staleness and loss on restart are acceptable.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type redisStore struct {
	redisP *redisprovider.RedisProvider
}

func NewRedisStore(redisP *redisprovider.RedisProvider) Store {
	return &redisStore{redisP: redisP}
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.redisP.SetEX(ctx, key, value, ttl).Err()
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.redisP.Exists(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	return s.redisP.Del(ctx, keys...).Err()
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore mirrors redis TTL semantics for single-process tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}
