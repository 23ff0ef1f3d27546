package repositories

import "context"

// Repository aggregates the stores the identity service talks to.
type Repository interface {
	// Identity provider
	Auth() AuthRepository

	// profiles table, row-level security applies to every call
	Profile() ProfileRepository

	// Provider sessions keyed by session key
	Sessions() SessionStore

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with their backing connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
