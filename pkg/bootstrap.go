package pkg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/identity-service/internal/config"
	"github.com/SAP-F-2025/identity-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/identity-service/internal/repositories/supabase"
	"github.com/SAP-F-2025/identity-service/internal/services"
	"github.com/SAP-F-2025/identity-service/migrations"
)

// NewRepositoryConfig maps application config onto the repository layer.
func NewRepositoryConfig(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) postgres.RepositoryConfig {
	return postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		Supabase: supabase.Config{
			URL:     cfg.Supabase.URL,
			AnonKey: cfg.Supabase.AnonKey,
			Timeout: cfg.Supabase.HTTPTimeout,
		},
		JWTSecret:      cfg.Supabase.JWTSecret,
		ProfileBackend: cfg.ProfileBackend,
		SessionTTL:     cfg.SessionTTL,
	}
}

// NewServiceManagerConfig maps application config onto the service layer.
func NewServiceManagerConfig(cfg *config.Config) services.ServiceManagerConfig {
	return services.ServiceManagerConfig{
		Auth: services.AuthServiceConfig{
			SessionKey:          services.DefaultSessionKey,
			RefreshMargin:       cfg.Auth.RefreshMargin,
			AllowAdminSignup:    cfg.Auth.AllowAdminSignup,
			SignUpRedirectURL:   cfg.Auth.SignUpRedirectURL,
			PasswordRedirectURL: cfg.Auth.PasswordRedirectURL,
		},
	}
}

// RunMigrations applies the embedded schema to DATABASE_URL.
func RunMigrations(ctx context.Context, cfg *config.Config) (int, error) {
	list, err := migrations.Load()
	if err != nil {
		return 0, err
	}

	pool, err := NewPgxPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return 0, err
	}
	defer pool.Close()

	applied, err := migrations.Run(ctx, pool, list)
	if err != nil {
		return applied, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Migrations complete", "applied", applied, "total", len(list))
	return applied, nil
}
