package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/helixir/federated-search-service/internal/domain"
)

// ErrMiss reports that a key is absent from a cache tier.
var ErrMiss = errors.New("cache miss")

// SharedStore is the L2 tier: a network key-value store shared across
// processes with atomic per-key GET and SETEX semantics.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	FlushDB(ctx context.Context) error
	Close() error
}

// RedisStore backs the shared tier with Redis.
type RedisStore struct {
	client *redis.Client
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Address     string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Address,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", domain.ErrCacheBackend, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheBackend, err)
	}
	return value, nil
}

func (s *RedisStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.SetEX(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheBackend, err)
	}
	return nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheBackend, err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheBackend, err)
	}
	return keys, nil
}

func (s *RedisStore) FlushDB(ctx context.Context) error {
	if err := s.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheBackend, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is an in-process SharedStore used when the shared tier is
// disabled, and as the test double for Redis.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory shared store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			s.mu.Lock()
			delete(s.entries, key)
			s.mu.Unlock()
		}
		return nil, ErrMiss
	}
	return entry.value, nil
}

func (s *MemoryStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// Keys supports the glob subset Redis KEYS uses: * matches any run of
// characters.
func (s *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	var keys []string
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok || matchContains(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *MemoryStore) FlushDB(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len reports the live entry count, expired entries included until touched.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// matchContains handles the common "*substr*" pattern without invoking glob
// semantics on the inner part.
func matchContains(pattern, key string) bool {
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) >= 2 {
		return strings.Contains(key, pattern[1:len(pattern)-1])
	}
	return false
}
