package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/SAP-F-2025/identity-service/internal/models"
)

func strPtr(s string) *string { return &s }

func rolePtr(r models.UserRole) *models.UserRole { return &r }

func TestValidator_SignUpRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name       string
		req        SignUpRequest
		wantFields []string
	}{
		{"valid", SignUpRequest{Email: "a@example.com", Password: "secret1"}, nil},
		{"valid with role", SignUpRequest{Email: "a@example.com", Password: "secret1", Role: rolePtr(models.RoleInstructor)}, nil},
		{"missing everything", SignUpRequest{}, []string{"email", "password"}},
		{"bad email", SignUpRequest{Email: "a@", Password: "secret1"}, []string{"email"}},
		{"short password", SignUpRequest{Email: "a@example.com", Password: "12345"}, []string{"password"}},
		{"long password", SignUpRequest{Email: "a@example.com", Password: strings.Repeat("x", 73)}, []string{"password"}},
		{"unknown role", SignUpRequest{Email: "a@example.com", Password: "secret1", Role: rolePtr("root")}, []string{"role"}},
		{"long name", SignUpRequest{Email: "a@example.com", Password: "secret1", FullName: strPtr(strings.Repeat("n", 101))}, []string{"full_name"}},
		{"padded name within limit", SignUpRequest{Email: "a@example.com", Password: "secret1", FullName: strPtr("   " + strings.Repeat("n", 100) + "   ")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			if len(verrs) != len(tt.wantFields) {
				t.Fatalf("got %d errors (%v), want %d", len(verrs), verrs, len(tt.wantFields))
			}
			for i, field := range tt.wantFields {
				if verrs[i].Field != field {
					t.Errorf("error %d field = %s, want %s", i, verrs[i].Field, field)
				}
			}
		})
	}
}

func TestValidator_RedactsPasswords(t *testing.T) {
	v := New()

	err := v.Validate(&UpdatePasswordRequest{Password: "123"})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Validate() error = %v", err)
	}
	if verrs[0].Value != nil {
		t.Errorf("password value leaked: %v", verrs[0].Value)
	}
	if verrs[0].Message != "must be between 6 and 72 characters" {
		t.Errorf("message = %q", verrs[0].Message)
	}

	err = v.Validate(&SignUpRequest{Email: "bad", Password: "secret1"})
	if !errors.As(err, &verrs) || verrs[0].Value != "bad" {
		t.Errorf("non-password values should be kept: %v", verrs)
	}
}

func TestValidator_UpdateProfileRequest(t *testing.T) {
	v := New()

	if err := v.Validate(&UpdateProfileRequest{AvatarURL: strPtr("https://cdn.example.com/a.png")}); err != nil {
		t.Errorf("valid avatar rejected: %v", err)
	}
	if err := v.Validate(&UpdateProfileRequest{AvatarURL: strPtr("avatar.png")}); err == nil {
		t.Error("relative avatar accepted")
	}
	if err := v.Validate(&UpdateProfileRequest{Role: rolePtr(models.RoleAdmin)}); err != nil {
		t.Errorf("admin role rejected by field rules: %v", err)
	}

	empty := &UpdateProfileRequest{}
	if !empty.IsEmpty() {
		t.Error("IsEmpty() = false for empty request")
	}
	if (&UpdateProfileRequest{FullName: strPtr("")}).IsEmpty() {
		t.Error("explicit empty name is still a change")
	}
}

func TestValidator_ProfileListRequest(t *testing.T) {
	v := New()

	if err := v.Validate(&ProfileListRequest{}); err != nil {
		t.Errorf("empty listing rejected: %v", err)
	}
	if err := v.Validate(&ProfileListRequest{Size: 101}); err == nil {
		t.Error("oversized page accepted")
	}
	if err := v.Validate(&ProfileListRequest{Role: rolePtr("ghost")}); err == nil {
		t.Error("unknown role accepted")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	if got := (ValidationErrors{}).Error(); got != "validation failed" {
		t.Errorf("got %q", got)
	}
	one := ValidationErrors{{Field: "email", Message: "is required"}}
	if got := one.Error(); got != "validation failed: email is required" {
		t.Errorf("got %q", got)
	}
	two := ValidationErrors{{Field: "a"}, {Field: "b"}}
	if got := two.Error(); got != "validation failed: 2 field errors" {
		t.Errorf("got %q", got)
	}
}

func TestRoleRules(t *testing.T) {
	admin := &models.Profile{ID: "admin-id", Role: models.RoleAdmin}
	user := &models.Profile{ID: "user-id", Role: models.RoleUser}

	t.Run("signup role", func(t *testing.T) {
		closed := RoleRules{}
		if errs := closed.ValidateSignUpRole(models.RoleUser); len(errs) != 0 {
			t.Errorf("user role rejected: %v", errs)
		}
		if errs := closed.ValidateSignUpRole(models.RoleInstructor); len(errs) != 0 {
			t.Errorf("instructor role rejected: %v", errs)
		}
		if errs := closed.ValidateSignUpRole(models.RoleAdmin); len(errs) != 1 || errs[0].Rule != "admin_signup" {
			t.Errorf("admin role errs = %v", errs)
		}
		if errs := closed.ValidateSignUpRole("root"); len(errs) != 1 || errs[0].Rule != "user_role" {
			t.Errorf("unknown role errs = %v", errs)
		}
		if errs := (RoleRules{AllowAdminSignup: true}).ValidateSignUpRole(models.RoleAdmin); len(errs) != 0 {
			t.Errorf("admin signup rejected when allowed: %v", errs)
		}
	})

	t.Run("role changes", func(t *testing.T) {
		rules := RoleRules{}
		tests := []struct {
			name   string
			actor  *models.Profile
			target string
			role   models.UserRole
			want   bool
		}{
			{"admin promotes user", admin, "user-id", models.RoleInstructor, true},
			{"admin keeps own role", admin, "admin-id", models.RoleAdmin, true},
			{"admin demotes self", admin, "admin-id", models.RoleUser, false},
			{"user promotes self", user, "user-id", models.RoleAdmin, false},
			{"user changes other", user, "admin-id", models.RoleUser, false},
			{"no profile", nil, "user-id", models.RoleUser, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := rules.CanChangeRole(tt.actor, tt.target, tt.role); got != tt.want {
					t.Errorf("CanChangeRole() = %v, want %v", got, tt.want)
				}
			})
		}
	})
}
