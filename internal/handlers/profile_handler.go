package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/identity-service/internal/services"
	"github.com/SAP-F-2025/identity-service/internal/utils"
)

type ProfileHandler struct {
	BaseHandler
}

func NewProfileHandler(logger utils.Logger) *ProfileHandler {
	return &ProfileHandler{
		BaseHandler: NewBaseHandler(logger),
	}
}

// UpdateProfile updates the caller's own profile
// @Summary Update own profile
// @Tags profile
// @Accept json
// @Produce json
// @Param request body services.UpdateProfileRequest true "Changed fields"
// @Success 200 {object} models.Profile
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /profile [patch]
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	h.LogRequest(c, "Updating own profile", "user_id", c.GetString("user_id"))

	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	profile, err := GetAuthService(c).UpdateProfile(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}
