package repositories

import (
	"context"

	"github.com/SAP-F-2025/identity-service/internal/models"
)

// ProfileFilters defines filters for profile listing
type ProfileFilters struct {
	Query  string           // Search over email and full name
	Role   *models.UserRole // Exact role match
	Limit  int              // Page size
	Offset int              // Offset for pagination
}

// ProfileRepository reads and writes the profiles table as the caller whose
// access token is carried on the context (see WithAccessToken). Rows hidden
// by row-level security look exactly like missing rows.
type ProfileRepository interface {
	// GetByID returns ErrNotFound when the row is absent or not visible.
	GetByID(ctx context.Context, id string) (*models.Profile, error)

	// Insert ignores conflicts on id, so a row created by the signup
	// trigger is left as-is.
	Insert(ctx context.Context, profile *models.ProfileInsert) error

	// Update returns ErrNoRowsAffected when no visible row matched.
	Update(ctx context.Context, id string, changes models.ProfileChanges) (*models.Profile, error)

	List(ctx context.Context, filters ProfileFilters) ([]*models.Profile, int64, error)
}
