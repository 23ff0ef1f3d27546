package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/identity-service/internal/cache"
	"github.com/SAP-F-2025/identity-service/internal/config"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
	"github.com/SAP-F-2025/identity-service/internal/repositories/memory"
	redisstore "github.com/SAP-F-2025/identity-service/internal/repositories/redis"
	"github.com/SAP-F-2025/identity-service/internal/repositories/supabase"
)

// PostgreSQLRepository implements the main Repository interface. The auth
// repository always talks to the hosted auth API; profiles go either through
// the REST API or straight to the database.
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager
	client       *supabase.Client

	// Repository instances
	auth     repositories.AuthRepository
	profile  repositories.ProfileRepository
	sessions repositories.SessionStore
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB             *gorm.DB
	RedisClient    *redis.Client
	Supabase       supabase.Config
	JWTSecret      string
	ProfileBackend string
	SessionTTL     time.Duration

	// SessionStore overrides the store picked from RedisClient.
	SessionStore repositories.SessionStore
}

// NewPostgreSQLRepository wires the sub-repositories for cfg.
func NewPostgreSQLRepository(cfg RepositoryConfig) (repositories.Repository, error) {
	client, err := supabase.NewClient(cfg.Supabase)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	repo := &PostgreSQLRepository{
		db:           cfg.DB,
		redisClient:  cfg.RedisClient,
		cacheManager: cache.NewCacheManager(cfg.RedisClient),
		client:       client,
	}

	repo.auth = supabase.NewAuthGoTrue(client)

	switch cfg.ProfileBackend {
	case "", config.ProfileBackendPostgREST:
		repo.profile = supabase.NewProfilePostgREST(client)
	case config.ProfileBackendPostgres:
		if cfg.DB == nil {
			return nil, errors.New("profile backend postgres requires a database connection")
		}
		repo.profile = NewProfilePostgreSQL(cfg.DB, cfg.JWTSecret)
	default:
		return nil, fmt.Errorf("unknown profile backend %q", cfg.ProfileBackend)
	}

	switch {
	case cfg.SessionStore != nil:
		repo.sessions = cfg.SessionStore
	case cfg.RedisClient != nil:
		repo.sessions = redisstore.NewSessionRedis(cfg.RedisClient, cfg.SessionTTL)
	default:
		repo.sessions = memory.NewSessionMemory()
	}

	return repo, nil
}

// Auth returns the identity provider repository
func (r *PostgreSQLRepository) Auth() repositories.AuthRepository {
	return r.auth
}

// Profile returns the profile repository
func (r *PostgreSQLRepository) Profile() repositories.ProfileRepository {
	return r.profile
}

// Sessions returns the session store
func (r *PostgreSQLRepository) Sessions() repositories.SessionStore {
	return r.sessions
}

// Ping checks the auth API, database and cache connections
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx); err != nil {
		return fmt.Errorf("auth api ping failed: %w", err)
	}

	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err != nil {
			return fmt.Errorf("failed to get database instance: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
	}

	if r.redisClient != nil {
		if err := r.cacheManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}

	return nil
}

// Close closes all connections
func (r *PostgreSQLRepository) Close() error {
	var errs []error

	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get database instance: %w", err))
		} else if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

// NewRepositoryManager creates a new repository manager
func NewRepositoryManager(cfg RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{
		config: cfg,
	}
}

// Initialize checks the configured connections and builds the repository
func (rm *RepositoryManager) Initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if rm.config.DB != nil {
		sqlDB, err := rm.config.DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get database instance: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
	}

	if rm.config.RedisClient != nil {
		if _, err := rm.config.RedisClient.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("Redis connection failed: %w", err)
		}
	}

	repo, err := NewPostgreSQLRepository(rm.config)
	if err != nil {
		return err
	}
	rm.repo = repo

	return nil
}

// GetRepository returns the repository instance
func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

// HealthCheck checks the health of all repository connections
func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}

	return rm.repo.Ping(ctx)
}

// Shutdown gracefully shuts down all repository connections
func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}

	return rm.repo.Close()
}
