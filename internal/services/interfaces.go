package services

import (
	"context"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

type SignUpRequest = validator.SignUpRequest
type SignInRequest = validator.SignInRequest
type UpdateProfileRequest = validator.UpdateProfileRequest
type ResetPasswordRequest = validator.ResetPasswordRequest
type UpdatePasswordRequest = validator.UpdatePasswordRequest
type ProfileListRequest = validator.ProfileListRequest

// AuthResult is returned by sign-up and sign-in. Session is nil when the
// provider still wants the email address confirmed.
type AuthResult struct {
	User    *models.User    `json:"user"`
	Session *models.Session `json:"session,omitempty"`
}

func (r *AuthResult) NeedsConfirmation() bool {
	return r.Session == nil
}

type ProfileListResponse struct {
	Profiles []*models.Profile `json:"profiles"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

// ===== SERVICE INTERFACES =====

// AuthService owns the session stored under one session key. ForSession
// returns a view over another key; all views share the same stores.
type AuthService interface {
	ForSession(key string) AuthService
	SessionKey() string

	SignUp(ctx context.Context, req *SignUpRequest) (*AuthResult, error)
	SignIn(ctx context.Context, req *SignInRequest) (*AuthResult, error)
	SignOut(ctx context.Context) error

	// GetCurrentSession returns nil, nil when signed out. An expiring access
	// token is refreshed first.
	GetCurrentSession(ctx context.Context) (*models.Session, error)
	// GetCurrentUser returns nil, nil when signed out. The profile is read
	// fresh on every call.
	GetCurrentUser(ctx context.Context) (*models.User, error)

	UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*models.Profile, error)
	ResetPassword(ctx context.Context, req *ResetPasswordRequest) error
	UpdatePassword(ctx context.Context, req *UpdatePasswordRequest) (*models.User, error)

	HasRole(ctx context.Context, role models.UserRole) (bool, error)
	IsAdmin(ctx context.Context) (bool, error)

	// Admin operations. Visibility is decided by row-level security; the
	// role checks here only produce clearer errors.
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	ListProfiles(ctx context.Context, req *ProfileListRequest) (*ProfileListResponse, error)
	UpdateProfileByID(ctx context.Context, id string, req *UpdateProfileRequest) (*models.Profile, error)
	ExportProfiles(ctx context.Context, req *ProfileListRequest) ([]byte, error)
}

// ServiceManager owns service lifecycles
type ServiceManager interface {
	Auth() AuthService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
