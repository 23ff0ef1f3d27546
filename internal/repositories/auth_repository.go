package repositories

import (
	"context"

	"github.com/SAP-F-2025/identity-service/internal/models"
)

// SignUpParams carries the fields sent to the provider's signup endpoint.
// Data ends up in the user's metadata and is read by the profile trigger.
type SignUpParams struct {
	Email      string
	Password   string
	Data       map[string]interface{}
	RedirectTo string
}

// UserAttributes is the body of an update-user call. Empty fields are omitted.
type UserAttributes struct {
	Email    string                 `json:"email,omitempty"`
	Password string                 `json:"password,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// AuthRepository wraps the identity provider. It holds no session state;
// callers pass tokens explicitly.
type AuthRepository interface {
	// SignUp returns a nil session when the provider requires email confirmation.
	SignUp(ctx context.Context, params SignUpParams) (*models.Session, *models.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error

	GetUser(ctx context.Context, accessToken string) (*models.User, error)
	UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (*models.User, error)

	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
}
