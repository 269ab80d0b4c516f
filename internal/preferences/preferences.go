// Package preferences stores per-user UI flags (dismissed guides, first-run
// markers) behind interfaces.PreferenceStore.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
)

type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, userID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.prefs[userID][key]
	if !ok {
		return "", fmt.Errorf("%w: preference %s for user %s", apperr.ErrNotFound, key, userID)
	}
	return v, nil
}

func (s *MemoryStore) Set(ctx context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefs[userID] == nil {
		s.prefs[userID] = make(map[string]string)
	}
	s.prefs[userID][key] = value
	return nil
}

// RedisStore keeps one hash per user.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func hashKey(userID string) string {
	return fmt.Sprintf("preferences:%s", userID)
}

func (s *RedisStore) Get(ctx context.Context, userID, key string) (string, error) {
	v, err := s.client.HGet(ctx, hashKey(userID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: preference %s for user %s", apperr.ErrNotFound, key, userID)
	}
	if err != nil {
		return "", fmt.Errorf("read preference %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, userID, key, value string) error {
	if err := s.client.HSet(ctx, hashKey(userID), key, value).Err(); err != nil {
		return fmt.Errorf("write preference %s: %w", key, err)
	}
	return nil
}
