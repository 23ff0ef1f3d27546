package authctl

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
)

const promoteSQL = `
UPDATE public.profiles
SET role = $1::public.user_role
WHERE lower(email) = lower($2)
RETURNING id::text, email, full_name, avatar_url, role::text, created_at, updated_at`

// Promoter sets profile roles with the database owner's connection. It is
// how the first admin gets created, since row-level security only lets an
// existing admin change roles.
type Promoter struct {
	pool *pgxpool.Pool
}

func NewPromoter(pool *pgxpool.Pool) *Promoter {
	return &Promoter{pool: pool}
}

func (p *Promoter) Promote(ctx context.Context, email string, role models.UserRole) (*models.Profile, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	var profile models.Profile
	err := p.pool.QueryRow(ctx, promoteSQL, string(role), email).Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&profile.AvatarURL,
		&profile.Role,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no profile for %s: %w", email, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("update role: %w", err)
	}

	return &profile, nil
}
