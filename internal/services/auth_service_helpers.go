package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/identity-service/internal/events"
	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
)

// requireSession returns the current session or ErrNotAuthenticated.
func (s *authService) requireSession(ctx context.Context) (*models.Session, error) {
	session, err := s.GetCurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil || session.User == nil {
		return nil, ErrNotAuthenticated
	}
	return session, nil
}

// requireCaller returns the current session and the caller's profile.
func (s *authService) requireCaller(ctx context.Context) (*models.Session, *models.Profile, error) {
	session, err := s.requireSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	return session, s.loadProfile(ctx, session.AccessToken, session.User.ID), nil
}

func (s *authService) storeSession(ctx context.Context, session *models.Session) error {
	if err := s.repo.Sessions().Set(ctx, s.config.SessionKey, session); err != nil {
		s.logger.Error("Failed to store session", "error", err)
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// loadProfile reads the profile as the token's holder. Errors are logged
// and yield nil; a user without a readable profile is still a user.
func (s *authService) loadProfile(ctx context.Context, token, userID string) *models.Profile {
	profile, err := s.repo.Profile().GetByID(repositories.WithAccessToken(ctx, token), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Warn("Profile not found", "user_id", userID)
		} else {
			s.logger.Error("Failed to load profile", "user_id", userID, "error", err)
		}
		return nil
	}
	return profile
}

// ensureProfile loads the profile and recreates it from the user's metadata
// when the row is missing.
func (s *authService) ensureProfile(ctx context.Context, token string, user *models.User) *models.Profile {
	pctx := repositories.WithAccessToken(ctx, token)

	profile, err := s.repo.Profile().GetByID(pctx, user.ID)
	if err == nil {
		return profile
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		s.logger.Error("Failed to load profile", "user_id", user.ID, "error", err)
		return nil
	}

	// Metadata is user-editable, so an admin role found there is not trusted.
	role := models.ParseRole(user.MetadataString("role"))
	if role == models.RoleAdmin && !s.config.AllowAdminSignup {
		role = models.RoleUser
	}

	s.logger.Warn("Profile missing, recreating from user metadata", "user_id", user.ID, "role", role)
	insert := &models.ProfileInsert{
		ID:       user.ID,
		Email:    user.Email,
		FullName: trimmedOrNil(stringPtr(user.MetadataString("full_name"))),
		Role:     role,
	}
	if err := s.repo.Profile().Insert(pctx, insert); err != nil {
		s.logger.Error("Failed to recreate profile", "user_id", user.ID, "error", err)
		return nil
	}

	profile, err = s.repo.Profile().GetByID(pctx, user.ID)
	if err != nil {
		s.logger.Error("Failed to load recreated profile", "user_id", user.ID, "error", err)
		return nil
	}
	return profile
}

func (s *authService) changesFrom(req *UpdateProfileRequest) models.ProfileChanges {
	changes := models.ProfileChanges{
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
		Role:      req.Role,
		UpdatedAt: s.now().UTC(),
	}
	if changes.FullName != nil {
		name := strings.TrimSpace(*changes.FullName)
		changes.FullName = &name
	}
	return changes
}

func (s *authService) publish(ctx context.Context, event models.AuthChangeEvent, session *models.Session) {
	s.publishChange(ctx, events.AuthStateChange{
		Event:      event,
		SessionKey: s.config.SessionKey,
		Session:    session.Storable(),
	})
}

// publishChange never fails the calling operation; listeners resync on the
// next event.
func (s *authService) publishChange(ctx context.Context, change events.AuthStateChange) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.TopicAuthStateChanged, events.NewAuthStateEvent(change)); err != nil {
		s.logger.Error("Failed to publish auth event", "event", change.Event, "error", err)
	}
}

// providerError maps identity provider failures onto service errors while
// keeping the original in the chain.
func providerError(op string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrRateLimited):
		return fmt.Errorf("%s: %w: %w", op, ErrRateLimited, err)
	case errors.Is(err, repositories.ErrEmailNotConfirmed):
		return fmt.Errorf("%s: %w: %w", op, ErrEmailNotConfirmed, err)
	case errors.Is(err, repositories.ErrInvalidCredentials):
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidCredentials, err)
	case errors.Is(err, repositories.ErrDuplicate):
		return fmt.Errorf("%s: %w: %w", op, ErrUserAlreadyExists, err)
	case errors.Is(err, repositories.ErrSessionInvalid):
		return fmt.Errorf("%s: %w: %w", op, ErrSessionExpired, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringPtr(value string) *string {
	return &value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// sessionKeyForLog keeps enough of a session key to correlate log lines.
func sessionKeyForLog(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}
