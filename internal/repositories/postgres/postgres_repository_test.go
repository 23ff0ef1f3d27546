package postgres

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/identity-service/internal/config"
	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories/memory"
	redisstore "github.com/SAP-F-2025/identity-service/internal/repositories/redis"
	"github.com/SAP-F-2025/identity-service/internal/repositories/supabase"
)

var testSupabase = supabase.Config{URL: "http://127.0.0.1:54321", AnonKey: "anon"}

func TestNewPostgreSQLRepository(t *testing.T) {
	t.Run("defaults to rest profiles and memory sessions", func(t *testing.T) {
		repo, err := NewPostgreSQLRepository(RepositoryConfig{Supabase: testSupabase})
		if err != nil {
			t.Fatalf("NewPostgreSQLRepository() error = %v", err)
		}
		if _, ok := repo.Profile().(*supabase.ProfilePostgREST); !ok {
			t.Errorf("profile repository = %T", repo.Profile())
		}

		repo, err = NewPostgreSQLRepository(RepositoryConfig{Supabase: testSupabase, ProfileBackend: config.ProfileBackendPostgREST})
		if err != nil {
			t.Fatalf("NewPostgreSQLRepository(%s) error = %v", config.ProfileBackendPostgREST, err)
		}
		if _, ok := repo.Profile().(*supabase.ProfilePostgREST); !ok {
			t.Errorf("profile repository = %T", repo.Profile())
		}
		if _, ok := repo.Sessions().(*memory.SessionMemory); !ok {
			t.Errorf("session store = %T", repo.Sessions())
		}
		if repo.Auth() == nil {
			t.Error("auth repository is nil")
		}
	})

	t.Run("redis sessions", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

		repo, err := NewPostgreSQLRepository(RepositoryConfig{Supabase: testSupabase, RedisClient: client})
		if err != nil {
			t.Fatalf("NewPostgreSQLRepository() error = %v", err)
		}
		if _, ok := repo.Sessions().(*redisstore.SessionRedis); !ok {
			t.Errorf("session store = %T", repo.Sessions())
		}

		session := &models.Session{AccessToken: "a", RefreshToken: "r"}
		if err := repo.Sessions().Set(context.Background(), "k", session); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if !mr.Exists("session:k") {
			t.Errorf("keys = %v", mr.Keys())
		}
		if err := repo.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	t.Run("session store override", func(t *testing.T) {
		store := memory.NewSessionMemory()
		repo, err := NewPostgreSQLRepository(RepositoryConfig{Supabase: testSupabase, SessionStore: store})
		if err != nil {
			t.Fatalf("NewPostgreSQLRepository() error = %v", err)
		}
		if repo.Sessions() != store {
			t.Error("override ignored")
		}
	})

	errorCases := []struct {
		name   string
		config RepositoryConfig
	}{
		{"missing supabase url", RepositoryConfig{Supabase: supabase.Config{AnonKey: "anon"}}},
		{"postgres backend without db", RepositoryConfig{Supabase: testSupabase, ProfileBackend: config.ProfileBackendPostgres}},
		{"unknown backend", RepositoryConfig{Supabase: testSupabase, ProfileBackend: "mongo"}},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPostgreSQLRepository(tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRepositoryManager_NotInitialized(t *testing.T) {
	rm := NewRepositoryManager(RepositoryConfig{Supabase: testSupabase})
	if rm.GetRepository() != nil {
		t.Error("repository should be nil before Initialize")
	}
	if err := rm.HealthCheck(context.Background()); err == nil {
		t.Error("expected error before Initialize")
	}
	if err := rm.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
