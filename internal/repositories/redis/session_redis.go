package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/identity-service/internal/cache"
	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
	goredis "github.com/redis/go-redis/v9"
)

// SessionRedis stores provider sessions as JSON under "session:<key>".
type SessionRedis struct {
	cache *cache.CacheHelper
	ttl   time.Duration
}

func NewSessionRedis(client *goredis.Client, ttl time.Duration) repositories.SessionStore {
	if ttl <= 0 {
		ttl = cache.SessionCacheConfig.TTL
	}
	return &SessionRedis{
		cache: cache.NewCacheManager(client).Sessions,
		ttl:   ttl,
	}
}

func (r *SessionRedis) Get(ctx context.Context, key string) (*models.Session, error) {
	var session models.Session
	if err := r.cache.Get(ctx, key, &session); err != nil {
		if errors.Is(err, cache.ErrCacheNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

func (r *SessionRedis) Set(ctx context.Context, key string, session *models.Session) error {
	if session == nil {
		return r.Delete(ctx, key)
	}
	if err := r.cache.Set(ctx, key, session.Storable(), r.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *SessionRedis) Delete(ctx context.Context, key string) error {
	if err := r.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
