package models

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleUser       UserRole = "user"
	RoleAdmin      UserRole = "admin"
	RoleInstructor UserRole = "instructor"
)

// AllRoles lists every role known to the profiles table, in enum order.
var AllRoles = []UserRole{RoleUser, RoleAdmin, RoleInstructor}

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRole maps free-form metadata onto a role, falling back to RoleUser
// the same way the profile trigger does.
func ParseRole(value string) UserRole {
	role := UserRole(strings.ToLower(strings.TrimSpace(value)))
	if role.IsValid() {
		return role
	}
	return RoleUser
}

// Profile is the application-owned row keyed by the identity provider's user id.
type Profile struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	FullName  *string   `json:"full_name" gorm:"column:full_name"`
	AvatarURL *string   `json:"avatar_url" gorm:"column:avatar_url"`
	Role      UserRole  `json:"role" gorm:"type:user_role;not null;default:user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	if p.FullName != nil {
		name := *p.FullName
		clone.FullName = &name
	}
	if p.AvatarURL != nil {
		avatar := *p.AvatarURL
		clone.AvatarURL = &avatar
	}
	return &clone
}

// ProfileInsert is the write shape for a new profile row. Timestamps are left
// to column defaults.
type ProfileInsert struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FullName  *string  `json:"full_name,omitempty"`
	AvatarURL *string  `json:"avatar_url,omitempty"`
	Role      UserRole `json:"role"`
}

// ProfileChanges is a partial update. Nil fields are left untouched.
type ProfileChanges struct {
	FullName  *string   `json:"full_name,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Role      *UserRole `json:"role,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c ProfileChanges) IsEmpty() bool {
	return c.FullName == nil && c.AvatarURL == nil && c.Role == nil
}

// Columns returns the column map used for gorm Updates.
func (c ProfileChanges) Columns() map[string]interface{} {
	columns := map[string]interface{}{
		"updated_at": c.UpdatedAt,
	}
	if c.FullName != nil {
		columns["full_name"] = *c.FullName
	}
	if c.AvatarURL != nil {
		columns["avatar_url"] = *c.AvatarURL
	}
	if c.Role != nil {
		columns["role"] = string(*c.Role)
	}
	return columns
}
