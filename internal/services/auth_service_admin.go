package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (s *authService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if err := validateProfileID(id); err != nil {
		return nil, err
	}

	session, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.repo.Profile().GetByID(repositories.WithAccessToken(ctx, session.AccessToken), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func (s *authService) ListProfiles(ctx context.Context, req *ProfileListRequest) (*ProfileListResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, NewPermissionError(session.User.ID, "", "profiles", "list", "admin role required")
	}

	page, size := normalizePage(req.Page, req.Size)
	profiles, total, err := s.repo.Profile().List(repositories.WithAccessToken(ctx, session.AccessToken), repositories.ProfileFilters{
		Query:  req.Query,
		Role:   req.Role,
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	return &ProfileListResponse{
		Profiles: profiles,
		Total:    total,
		Page:     page,
		Size:     size,
	}, nil
}

// UpdateProfileByID updates another user's profile. Updating your own row
// goes through UpdateProfile.
func (s *authService) UpdateProfileByID(ctx context.Context, id string, req *UpdateProfileRequest) (*models.Profile, error) {
	if err := validateProfileID(id); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.IsEmpty() {
		return nil, ErrNothingToUpdate
	}

	session, caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	callerID := session.User.ID
	if callerID == id {
		return s.UpdateProfile(ctx, req)
	}

	if !caller.IsAdmin() {
		return nil, NewPermissionError(callerID, id, "profile", "update", "admin role required")
	}
	if req.Role != nil && !s.rules.CanChangeRole(caller, id, *req.Role) {
		return nil, NewPermissionError(callerID, id, "profile", "change role", "role change not allowed")
	}

	profile, err := s.repo.Profile().Update(repositories.WithAccessToken(ctx, session.AccessToken), id, s.changesFrom(req))
	if err != nil {
		if errors.Is(err, repositories.ErrNoRowsAffected) {
			return nil, ErrProfileNotFound
		}
		if errors.Is(err, repositories.ErrPermissionDenied) {
			return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.logger.Info("Profile updated by admin", "admin_id", callerID, "user_id", id)
	return profile, nil
}

func validateProfileID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ValidationErrors{{Field: "id", Message: "must be a valid UUID", Value: id, Rule: "uuid"}}
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
