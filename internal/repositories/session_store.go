package repositories

import (
	"context"

	"github.com/SAP-F-2025/identity-service/internal/models"
)

// SessionStore persists provider sessions between calls.
type SessionStore interface {
	// Get returns nil, nil when nothing is stored under key.
	Get(ctx context.Context, key string) (*models.Session, error)
	Set(ctx context.Context, key string, session *models.Session) error
	Delete(ctx context.Context, key string) error
}
