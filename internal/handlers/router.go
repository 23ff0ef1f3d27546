package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/services"
	"github.com/SAP-F-2025/identity-service/internal/utils"
)

type HandlerManager struct {
	serviceManager services.ServiceManager
	authHandler    *AuthHandler
	profileHandler *ProfileHandler
	adminHandler   *AdminHandler
	authMiddleware *SessionAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	sessionConfig SessionConfig,
) *HandlerManager {
	authMiddleware := NewSessionAuthMiddleware(serviceManager.Auth(), sessionConfig, logger)

	return &HandlerManager{
		serviceManager: serviceManager,
		authHandler:    NewAuthHandler(authMiddleware, logger),
		profileHandler: NewProfileHandler(logger),
		adminHandler:   NewAdminHandler(logger),
		authMiddleware: authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.SessionMiddleware())
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", hm.authHandler.SignUp)
			auth.POST("/signin", hm.authHandler.SignIn)
			auth.POST("/signout", hm.authHandler.SignOut)
			auth.GET("/session", hm.authHandler.GetSession)
			auth.POST("/password/reset", hm.authHandler.ResetPassword)

			auth.GET("/user", hm.authMiddleware.RequireAuth(), hm.authHandler.GetUser)
			auth.PUT("/password", hm.authMiddleware.RequireAuth(), hm.authHandler.UpdatePassword)
		}

		v1.PATCH("/profile", hm.authMiddleware.RequireAuth(), hm.profileHandler.UpdateProfile)

		// Admin routes - Admins only
		admin := v1.Group("/admin")
		admin.Use(hm.authMiddleware.RequireAuth(), hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
		{
			admin.GET("/profiles", hm.adminHandler.ListProfiles)
			admin.GET("/profiles/export", hm.adminHandler.ExportProfiles)
			admin.GET("/profiles/:id", hm.adminHandler.GetProfile)
			admin.PATCH("/profiles/:id", hm.adminHandler.UpdateProfile)
		}
	}

	router.GET("/health", hm.HealthCheck)
}

// HealthCheck pings the identity provider and the configured stores
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "identity-service",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "identity-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
