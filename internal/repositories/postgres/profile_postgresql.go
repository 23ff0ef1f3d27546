package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
	"github.com/SAP-F-2025/identity-service/internal/utils"
)

// ProfilePostgreSQL implements repositories.ProfileRepository with a direct
// database connection. Every call runs under withRLS so the same policies
// apply as through the REST API.
type ProfilePostgreSQL struct {
	db        *gorm.DB
	jwtSecret string
}

func NewProfilePostgreSQL(db *gorm.DB, jwtSecret string) repositories.ProfileRepository {
	return &ProfilePostgreSQL{db: db, jwtSecret: jwtSecret}
}

func (r *ProfilePostgreSQL) claims(ctx context.Context) (*utils.AccessTokenClaims, error) {
	token := repositories.AccessTokenFromContext(ctx)
	if token == "" {
		return nil, nil
	}
	claims, err := utils.ParseAccessToken(token, r.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrPermissionDenied, err)
	}
	return claims, nil
}

func (r *ProfilePostgreSQL) run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	claims, err := r.claims(ctx)
	if err != nil {
		return err
	}
	return translateError(withRLS(ctx, r.db, claims, fn))
}

func (r *ProfilePostgreSQL) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).First(&profile).Error
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (r *ProfilePostgreSQL) Insert(ctx context.Context, insert *models.ProfileInsert) error {
	profile := &models.Profile{
		ID:        insert.ID,
		Email:     insert.Email,
		FullName:  insert.FullName,
		AvatarURL: insert.AvatarURL,
		Role:      insert.Role,
	}
	if profile.Role == "" {
		profile.Role = models.RoleUser
	}

	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(profile).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

func (r *ProfilePostgreSQL) Update(ctx context.Context, id string, changes models.ProfileChanges) (*models.Profile, error) {
	var profile models.Profile
	err := r.run(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&models.Profile{}).Where("id = ?", id).Updates(changes.Columns())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repositories.ErrNoRowsAffected
		}
		return tx.Where("id = ?", id).First(&profile).Error
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNoRowsAffected) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &profile, nil
}

func (r *ProfilePostgreSQL) List(ctx context.Context, filters repositories.ProfileFilters) ([]*models.Profile, int64, error) {
	var (
		profiles []*models.Profile
		total    int64
	)
	err := r.run(ctx, func(tx *gorm.DB) error {
		query := tx.Model(&models.Profile{})
		if q := strings.TrimSpace(filters.Query); q != "" {
			like := "%" + q + "%"
			query = query.Where("email ILIKE ? OR full_name ILIKE ?", like, like)
		}
		if filters.Role != nil {
			query = query.Where("role = ?", string(*filters.Role))
		}

		if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return err
		}

		if filters.Limit > 0 {
			query = query.Limit(filters.Limit)
		}
		if filters.Offset > 0 {
			query = query.Offset(filters.Offset)
		}
		return query.Order("created_at DESC").Find(&profiles).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, total, nil
}

// translateError maps driver errors onto repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501":
			return fmt.Errorf("%w: %s", repositories.ErrPermissionDenied, pgErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", repositories.ErrDuplicate, pgErr.Message)
		}
	}
	return err
}
