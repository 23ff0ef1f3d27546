package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCacheHelper(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	manager := NewCacheManager(client)
	helper := manager.Sessions
	ctx := context.Background()

	if err := manager.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}

	type payload struct {
		Value string `json:"value"`
	}

	if err := helper.Set(ctx, "k", payload{Value: "v"}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	key := SessionCacheConfig.Prefix + "k"
	if !mr.Exists(key) {
		t.Fatalf("expected %q to exist, keys = %v", key, mr.Keys())
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("expected 1m TTL, got %v", ttl)
	}

	var got payload
	if err := helper.Get(ctx, "k", &got); err != nil || got.Value != "v" {
		t.Errorf("unexpected Get result %+v, %v", got, err)
	}

	helper.Set(ctx, "k2", payload{Value: "w"}, time.Minute)
	if err := helper.Delete(ctx, "k", "k2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := helper.Get(ctx, "k2", &got); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("expected ErrCacheNotFound, got %v", err)
	}
}

func TestCacheHelper_NoClient(t *testing.T) {
	manager := NewCacheManager(nil)
	ctx := context.Background()

	if err := manager.Sessions.Set(ctx, "k", "v", time.Minute); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("expected ErrCacheNotAvailable, got %v", err)
	}
	if err := manager.Sessions.Get(ctx, "k", &struct{}{}); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("expected ErrCacheNotAvailable, got %v", err)
	}
	if err := manager.HealthCheck(ctx); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("expected ErrCacheNotAvailable, got %v", err)
	}
}
