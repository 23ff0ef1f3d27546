package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/services"
	"github.com/SAP-F-2025/identity-service/internal/utils"
)

type AuthHandler struct {
	BaseHandler
	sessions *SessionAuthMiddleware
}

func NewAuthHandler(sessions *SessionAuthMiddleware, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		sessions:    sessions,
	}
}

// AuthResponse never carries provider tokens; the browser only holds the
// session cookie.
type AuthResponse struct {
	User              *models.User `json:"user"`
	ExpiresAt         int64        `json:"expires_at,omitempty"`
	NeedsConfirmation bool         `json:"needs_confirmation"`
}

type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	ExpiresAt     int64        `json:"expires_at,omitempty"`
	User          *models.User `json:"user,omitempty"`
}

func newAuthResponse(result *services.AuthResult) AuthResponse {
	response := AuthResponse{
		User:              result.User,
		NeedsConfirmation: result.NeedsConfirmation(),
	}
	if result.Session != nil {
		response.ExpiresAt = result.Session.ExpiresAt
	}
	return response
}

// SignUp registers a new account
// @Summary Sign up
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.SignUpRequest true "Sign up data"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	h.LogRequest(c, "Signing up")

	var req services.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	key, auth := h.sessions.IssueSession(c)
	result, err := auth.SignUp(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if result.Session != nil {
		h.sessions.SetSessionCookie(c, key)
	}

	c.JSON(http.StatusCreated, newAuthResponse(result))
}

// SignIn signs in with email and password
// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.SignInRequest true "Credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	h.LogRequest(c, "Signing in")

	var req services.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	// Sign-in replaces whatever session the client had.
	if previous := GetAuthService(c); previous != nil {
		if err := previous.SignOut(c.Request.Context()); err != nil {
			h.LogError(c, err, "Failed to sign out previous session")
		}
	}

	key, auth := h.sessions.IssueSession(c)
	result, err := auth.SignIn(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.sessions.SetSessionCookie(c, key)
	c.JSON(http.StatusOK, newAuthResponse(result))
}

// SignOut ends the current session
// @Summary Sign out
// @Tags auth
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /auth/signout [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	h.LogRequest(c, "Signing out")

	defer h.sessions.ClearSessionCookie(c)

	auth := GetAuthService(c)
	if auth == nil {
		c.JSON(http.StatusOK, SuccessResponse{Message: "Signed out"})
		return
	}

	// Local state is gone even when the provider call fails.
	if err := auth.SignOut(c.Request.Context()); err != nil {
		h.LogError(c, err, "Provider sign out failed")
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Signed out"})
}

// GetSession reports whether the caller holds a live session
// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} SessionResponse
// @Router /auth/session [get]
func (h *AuthHandler) GetSession(c *gin.Context) {
	auth := GetAuthService(c)
	if auth == nil {
		c.JSON(http.StatusOK, SessionResponse{})
		return
	}

	session, err := auth.GetCurrentSession(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if session == nil {
		h.sessions.ClearSessionCookie(c)
		c.JSON(http.StatusOK, SessionResponse{})
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		Authenticated: true,
		ExpiresAt:     session.ExpiresAt,
		User:          session.User,
	})
}

// GetUser returns the signed-in user with its profile
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /auth/user [get]
func (h *AuthHandler) GetUser(c *gin.Context) {
	user, err := GetUserFromContext(c)
	if err != nil {
		h.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ResetPassword sends a recovery email
// @Summary Request password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.ResetPasswordRequest true "Email"
// @Success 200 {object} SuccessResponse
// @Router /auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	h.LogRequest(c, "Requesting password reset")

	var req services.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	auth := GetAuthService(c)
	if auth == nil {
		auth = h.sessions.auth
	}

	if err := auth.ResetPassword(c.Request.Context(), &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "If the address is registered, a recovery email has been sent"})
}

// UpdatePassword changes the signed-in user's password
// @Summary Update password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.UpdatePasswordRequest true "New password"
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /auth/password [put]
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	h.LogRequest(c, "Updating password", "user_id", c.GetString("user_id"))

	var req services.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	user, err := GetAuthService(c).UpdatePassword(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
