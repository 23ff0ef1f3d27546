package supabase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/supabase-community/postgrest-go"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
)

// ProfilePostgREST implements repositories.ProfileRepository on the
// postgrest-go SDK. Requests run as the access token carried on the context,
// so the table's policies decide what is visible.
type ProfilePostgREST struct {
	client *Client
}

func NewProfilePostgREST(client *Client) repositories.ProfileRepository {
	return &ProfilePostgREST{client: client}
}

// profiles opens a query on the table with the call's deadline applied.
func (r *ProfilePostgREST) profiles(ctx context.Context) (*postgrest.QueryBuilder, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, r.client.timeout)
	return r.client.rest(ctx).From(profilesTable), cancel
}

func (r *ProfilePostgREST) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query, cancel := r.profiles(ctx)
	defer cancel()

	var rows []*models.Profile
	if _, err := query.Select("*", "", false).Eq("id", id).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", translateError(err))
	}
	if len(rows) == 0 {
		return nil, repositories.ErrNotFound
	}
	return rows[0], nil
}

// Insert treats a unique violation on id as success: the signup trigger
// usually creates the row first.
func (r *ProfilePostgREST) Insert(ctx context.Context, profile *models.ProfileInsert) error {
	query, cancel := r.profiles(ctx)
	defer cancel()

	_, _, err := query.Insert(profile, false, "", "minimal", "").Execute()
	if err = translateError(err); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

func (r *ProfilePostgREST) Update(ctx context.Context, id string, changes models.ProfileChanges) (*models.Profile, error) {
	query, cancel := r.profiles(ctx)
	defer cancel()

	var rows []*models.Profile
	if _, err := query.Update(changes, "representation", "").Eq("id", id).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", translateError(err))
	}
	// Policies filter the target row silently, so denial and absence both
	// come back as an empty representation.
	if len(rows) == 0 {
		return nil, repositories.ErrNoRowsAffected
	}
	return rows[0], nil
}

func (r *ProfilePostgREST) List(ctx context.Context, filters repositories.ProfileFilters) ([]*models.Profile, int64, error) {
	query, cancel := r.profiles(ctx)
	defer cancel()

	filter := query.Select("*", "exact", false)
	if q := strings.TrimSpace(filters.Query); q != "" {
		pattern := "*" + escapeFilterValue(q) + "*"
		filter = filter.Or(fmt.Sprintf("email.ilike.%s,full_name.ilike.%s", pattern, pattern), "")
	}
	if filters.Role != nil {
		filter = filter.Eq("role", string(*filters.Role))
	}
	switch {
	case filters.Limit > 0 && filters.Offset > 0:
		filter = filter.Range(filters.Offset, filters.Offset+filters.Limit-1, "")
	case filters.Limit > 0:
		filter = filter.Limit(filters.Limit, "")
	}
	filter = filter.Order("created_at", &postgrest.OrderOpts{Ascending: false})

	var rows []*models.Profile
	total, err := filter.ExecuteTo(&rows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list profiles: %w", translateError(err))
	}
	return rows, int64(total), nil
}

// escapeFilterValue strips characters that are reserved inside a
// PostgREST logical filter.
func escapeFilterValue(value string) string {
	replacer := strings.NewReplacer(",", " ", "(", " ", ")", " ", "*", " ", `"`, " ")
	return strings.TrimSpace(replacer.Replace(value))
}
