package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/services"
	"github.com/SAP-F-2025/identity-service/internal/utils"
)

const (
	SessionCookieName = "sb_session"
	SessionHeader     = "X-Session-ID"
)

type SessionConfig struct {
	CookieSecure bool
	CookieDomain string
	CookieMaxAge time.Duration
}

// SessionAuthMiddleware binds each request to the server-side session named
// by its cookie or X-Session-ID header.
type SessionAuthMiddleware struct {
	BaseHandler
	auth   services.AuthService
	config SessionConfig
}

func NewSessionAuthMiddleware(auth services.AuthService, config SessionConfig, logger utils.Logger) *SessionAuthMiddleware {
	return &SessionAuthMiddleware{
		BaseHandler: NewBaseHandler(logger),
		auth:        auth,
		config:      config,
	}
}

// SessionMiddleware resolves the session key. Unknown or malformed keys are
// ignored and the request proceeds anonymously.
func (m *SessionAuthMiddleware) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(SessionHeader)
		if key == "" {
			key, _ = c.Cookie(SessionCookieName)
		}

		if _, err := uuid.Parse(key); err == nil {
			c.Set("session_key", key)
			c.Set("auth_service", m.auth.ForSession(key))
		}

		c.Next()
	}
}

// RequireAuth rejects requests without a live session and loads the caller.
func (m *SessionAuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := GetAuthService(c)
		if auth == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
			})
			return
		}

		user, err := auth.GetCurrentUser(c.Request.Context())
		if err != nil {
			if errors.Is(err, services.ErrSessionExpired) {
				m.ClearSessionCookie(c)
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Session expired"})
				return
			}
			m.handleServiceError(c, err)
			c.Abort()
			return
		}
		if user == nil {
			m.ClearSessionCookie(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
			})
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_email", user.Email)
		if user.Profile != nil {
			c.Set("user_role", user.Profile.Role)
		}

		c.Next()
	}
}

// RequireRoleMiddleware checks if user has required role. Admins pass every
// role check.
func (m *SessionAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetUserRoleFromContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "forbidden",
				Details: err.Error(),
			})
			return
		}

		hasRequiredRole := false
		for _, requiredRole := range requiredRoles {
			if role == requiredRole || role == models.RoleAdmin {
				hasRequiredRole = true
				break
			}
		}

		if !hasRequiredRole {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
			})
			return
		}

		c.Next()
	}
}

// IssueSession starts a fresh session key for sign-in and sign-up so a
// client-chosen key is never promoted to an authenticated one.
func (m *SessionAuthMiddleware) IssueSession(c *gin.Context) (string, services.AuthService) {
	key := uuid.New().String()
	auth := m.auth.ForSession(key)
	c.Set("session_key", key)
	c.Set("auth_service", auth)
	return key, auth
}

func (m *SessionAuthMiddleware) SetSessionCookie(c *gin.Context, key string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, key, int(m.config.CookieMaxAge.Seconds()), "/", m.config.CookieDomain, m.config.CookieSecure, true)
	c.Header(SessionHeader, key)
}

func (m *SessionAuthMiddleware) ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", m.config.CookieDomain, m.config.CookieSecure, true)
}

// GetAuthService returns the session-bound auth service, or nil for
// anonymous requests.
func GetAuthService(c *gin.Context) services.AuthService {
	value, exists := c.Get("auth_service")
	if !exists {
		return nil
	}
	auth, _ := value.(services.AuthService)
	return auth
}

// GetUserFromContext extracts user from Gin context
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	user, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("user not found in context")
	}

	userModel, ok := user.(*models.User)
	if !ok {
		return nil, fmt.Errorf("invalid user type in context")
	}

	return userModel, nil
}

// GetUserRoleFromContext extracts user role from Gin context
func GetUserRoleFromContext(c *gin.Context) (models.UserRole, error) {
	userRole, exists := c.Get("user_role")
	if !exists {
		return "", fmt.Errorf("user role not found in context")
	}

	role, ok := userRole.(models.UserRole)
	if !ok {
		return "", fmt.Errorf("invalid user role type in context")
	}

	return role, nil
}
