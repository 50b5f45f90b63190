package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a refreshed artifact is served. Several missed
// refreshes in a row let it expire instead of serving stale nodes forever.
const DefaultTTL = time.Hour

// Store handles Redis operations for the subscription cache
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		ttl:    DefaultTTL,
	}
}

// SetClashConfig caches the merged clash config.
func (s *Store) SetClashConfig(ctx context.Context, data []byte) error {
	return s.set(ctx, KeyClashConfig, data, s.ttl)
}

// ClashConfig returns the cached clash config, or ErrNotFound.
func (s *Store) ClashConfig(ctx context.Context) ([]byte, error) {
	return s.get(ctx, KeyClashConfig)
}

// SetUserInfo caches the upstream subscription-userinfo header verbatim.
func (s *Store) SetUserInfo(ctx context.Context, info string) error {
	return s.set(ctx, KeyUserInfo, info, s.ttl)
}

// UserInfo returns the cached subscription-userinfo header, or ErrNotFound.
func (s *Store) UserInfo(ctx context.Context) (string, error) {
	data, err := s.get(ctx, KeyUserInfo)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
