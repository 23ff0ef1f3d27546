package validator

import (
	"github.com/SAP-F-2025/identity-service/internal/models"
)

// RoleRules holds the account policy around roles.
type RoleRules struct {
	AllowAdminSignup bool
}

// ValidateSignUpRole checks the role requested at registration.
func (r RoleRules) ValidateSignUpRole(role models.UserRole) ValidationErrors {
	if !role.IsValid() {
		return ValidationErrors{{Field: "role", Message: "must be one of user, admin, instructor", Value: string(role), Rule: "user_role"}}
	}
	if role == models.RoleAdmin && !r.AllowAdminSignup {
		return ValidationErrors{{Field: "role", Message: "admin accounts cannot be self-registered", Value: string(role), Rule: "admin_signup"}}
	}
	return nil
}

// CanChangeRole reports whether actor may set target's role to role.
// Only admins change roles, and an admin cannot demote themselves.
func (r RoleRules) CanChangeRole(actor *models.Profile, targetID string, role models.UserRole) bool {
	if !actor.IsAdmin() {
		return false
	}
	if actor.ID == targetID && role != models.RoleAdmin {
		return false
	}
	return true
}
