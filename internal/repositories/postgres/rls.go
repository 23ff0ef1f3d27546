package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/identity-service/internal/utils"
)

const (
	roleAnon          = "anon"
	roleAuthenticated = "authenticated"
	roleServiceRole   = "service_role"
)

// validRoleName guards SET LOCAL ROLE, which cannot take a bind parameter.
var validRoleName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// withRLS runs fn in a transaction that sees the database as the token's
// holder: the role is switched and the claims are exposed to auth.uid().
// service_role runs without either.
func withRLS(ctx context.Context, db *gorm.DB, claims *utils.AccessTokenClaims, fn func(tx *gorm.DB) error) error {
	role := roleAnon
	var claimsMap map[string]interface{}
	if claims != nil {
		role = claims.Role
		if role == "" {
			role = roleAuthenticated
		}
		claimsMap = claims.AsMap()
		claimsMap["role"] = role
	} else {
		claimsMap = map[string]interface{}{"role": roleAnon}
	}

	if role == roleServiceRole {
		return db.WithContext(ctx).Transaction(fn)
	}

	if !validRoleName.MatchString(role) {
		return fmt.Errorf("invalid role name: %s", role)
	}

	claimsJSON, err := json.Marshal(claimsMap)
	if err != nil {
		return fmt.Errorf("failed to encode jwt claims: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf(`SET LOCAL ROLE "%s"`, role)).Error; err != nil {
			return fmt.Errorf("set role %s: %w", role, err)
		}
		if err := tx.Exec(`SELECT set_config('request.jwt.claims', ?, true)`, string(claimsJSON)).Error; err != nil {
			return fmt.Errorf("set jwt claims: %w", err)
		}
		if sub, _ := claimsMap["sub"].(string); sub != "" {
			if err := tx.Exec(`SELECT set_config('request.jwt.claim.sub', ?, true)`, sub).Error; err != nil {
				return fmt.Errorf("set jwt sub: %w", err)
			}
		}
		if err := tx.Exec(`SELECT set_config('request.jwt.claim.role', ?, true)`, role).Error; err != nil {
			return fmt.Errorf("set jwt role: %w", err)
		}
		return fn(tx)
	})
}
