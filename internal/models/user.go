package models

import (
	"time"

	"gorm.io/datatypes"
)

// User is the identity provider's account record. Profile is attached by the
// auth service after reading the profiles table and is never persisted with it.
type User struct {
	ID               string            `json:"id"`
	Aud              string            `json:"aud,omitempty"`
	Role             string            `json:"role,omitempty"`
	Email            string            `json:"email"`
	Phone            string            `json:"phone,omitempty"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time        `json:"last_sign_in_at,omitempty"`
	AppMetadata      datatypes.JSONMap `json:"app_metadata,omitempty"`
	UserMetadata     datatypes.JSONMap `json:"user_metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`

	Profile *Profile `json:"profile,omitempty"`
}

// MetadataString reads a string value from user_metadata.
func (u *User) MetadataString(key string) string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	if value, ok := u.UserMetadata[key].(string); ok {
		return value
	}
	return ""
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Profile.IsAdmin()
}

func (u *User) HasRole(role UserRole) bool {
	return u != nil && u.Profile != nil && u.Profile.Role == role
}

// Clone copies the user and its profile. Metadata maps are shared.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Profile = u.Profile.Clone()
	return &clone
}
