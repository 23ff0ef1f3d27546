package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/identity-service/internal/services"
	"github.com/SAP-F-2025/identity-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminHandler struct {
	BaseHandler
}

func NewAdminHandler(logger utils.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler: NewBaseHandler(logger),
	}
}

// ListProfiles lists profiles visible to an admin
// @Summary List profiles
// @Tags admin
// @Produce json
// @Param q query string false "Search email or name"
// @Param role query string false "Filter by role (user, admin, instructor)"
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} services.ProfileListResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/profiles [get]
func (h *AdminHandler) ListProfiles(c *gin.Context) {
	h.LogRequest(c, "Listing profiles")

	var req services.ProfileListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	response, err := GetAuthService(c).ListProfiles(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetProfile returns one profile by user id
// @Summary Get profile
// @Tags admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.Profile
// @Failure 404 {object} ErrorResponse
// @Router /admin/profiles/{id} [get]
func (h *AdminHandler) GetProfile(c *gin.Context) {
	id := c.Param("id")
	h.LogRequest(c, "Getting profile", "profile_id", id)

	profile, err := GetAuthService(c).GetProfile(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateProfile updates any profile, including its role
// @Summary Update profile
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body services.UpdateProfileRequest true "Changed fields"
// @Success 200 {object} models.Profile
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/profiles/{id} [patch]
func (h *AdminHandler) UpdateProfile(c *gin.Context) {
	id := c.Param("id")
	h.LogRequest(c, "Updating profile", "profile_id", id)

	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	profile, err := GetAuthService(c).UpdateProfileByID(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// ExportProfiles downloads matching profiles as an xlsx workbook
// @Summary Export profiles
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param q query string false "Search email or name"
// @Param role query string false "Filter by role"
// @Success 200 {file} file
// @Router /admin/profiles/export [get]
func (h *AdminHandler) ExportProfiles(c *gin.Context) {
	h.LogRequest(c, "Exporting profiles")

	var req services.ProfileListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	data, err := GetAuthService(c).ExportProfiles(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("profiles-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
