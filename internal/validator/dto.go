package validator

import "github.com/SAP-F-2025/identity-service/internal/models"

// SignUpRequest represents the request structure for registering an account
type SignUpRequest struct {
	Email    string           `json:"email" validate:"required,email,max=255"`
	Password string           `json:"password" validate:"required,password"`
	FullName *string          `json:"full_name" validate:"omitempty,trimmed_max=100"`
	Role     *models.UserRole `json:"role" validate:"omitempty,user_role"`
}

// SignInRequest represents the request structure for password sign-in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest is a partial profile update. Role changes are only
// honoured for admins.
type UpdateProfileRequest struct {
	FullName  *string          `json:"full_name" validate:"omitempty,trimmed_max=100"`
	AvatarURL *string          `json:"avatar_url" validate:"omitempty,url,max=500"`
	Role      *models.UserRole `json:"role" validate:"omitempty,user_role"`
}

func (r *UpdateProfileRequest) IsEmpty() bool {
	return r.FullName == nil && r.AvatarURL == nil && r.Role == nil
}

// ResetPasswordRequest asks the provider to mail a recovery link
type ResetPasswordRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RedirectTo string `json:"redirect_to" validate:"omitempty,url"`
}

// UpdatePasswordRequest changes the signed-in user's password
type UpdatePasswordRequest struct {
	Password string `json:"password" validate:"required,password"`
}

// ProfileListRequest carries admin listing parameters
type ProfileListRequest struct {
	Query string           `form:"q" json:"q" validate:"omitempty,max=100"`
	Role  *models.UserRole `form:"role" json:"role" validate:"omitempty,user_role"`
	Page  int              `form:"page" json:"page" validate:"omitempty,min=1"`
	Size  int              `form:"size" json:"size" validate:"omitempty,min=1,max=100"`
}
