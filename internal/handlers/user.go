package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ilker/timetable-server/internal/models"
	"github.com/ilker/timetable-server/internal/repository"
	"gorm.io/gorm"
)

var knownPermissions = map[string]struct{}{
	models.PermAdmin:          {},
	models.PermTimeTable:      {},
	models.PermTimeTableAdmin: {},
}

type UserHandler struct {
	db      *gorm.DB
	devices *repository.DeviceRepository
}

func NewUserHandler(db *gorm.DB, devices *repository.DeviceRepository) *UserHandler {
	return &UserHandler{db: db, devices: devices}
}

type UpdateUserRequest struct {
	Name     string `json:"name" binding:"omitempty,min=2,max=60"`
	IsActive *bool  `json:"is_active"`
}

// UpdatePermissionsRequest replaces the user's permission map. Permissions
// take effect with the user's next token.
type UpdatePermissionsRequest struct {
	Permissions models.Permissions `json:"permissions" binding:"required"`
}

// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "page"
// @Param per_page query int false "page size (max 100)"
// @Success 200 {object} Response{data=[]UserResponse}
// @Failure 403 {object} Response
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	db := h.db.WithContext(c.Request.Context())

	var total int64
	db.Model(&models.User{}).Count(&total)

	var users []models.User
	if err := db.Order("id").Offset(offset).Limit(perPage).Find(&users).Error; err != nil {
		InternalError(c, "Failed to fetch users")
		return
	}

	response := make([]UserResponse, len(users))
	for i := range users {
		response[i] = newUserResponse(&users[i])
	}

	SuccessWithMeta(c, response, &Meta{
		Page:    page,
		PerPage: perPage,
		Total:   total,
	})
}

// @Summary Get user
// @Tags users
// @Produce json
// @Param id path int true "user id"
// @Success 200 {object} Response{data=UserResponse}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, ok := h.find(c)
	if !ok {
		return
	}
	Success(c, newUserResponse(user))
}

// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Param id path int true "user id"
// @Param body body UpdateUserRequest true "fields to change"
// @Success 200 {object} Response{data=UserResponse}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /users/{id} [patch]
func (h *UserHandler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	user, ok := h.find(c)
	if !ok {
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.db.WithContext(c.Request.Context()).Save(user).Error; err != nil {
		InternalError(c, "Failed to update user")
		return
	}

	Success(c, newUserResponse(user))
}

// @Summary Set permissions
// @Tags users
// @Accept json
// @Produce json
// @Param id path int true "user id"
// @Param body body UpdatePermissionsRequest true "permission map, e.g. {\"timeTable\": true}"
// @Success 200 {object} Response{data=UserResponse}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /users/{id}/permissions [patch]
func (h *UserHandler) UpdatePermissions(c *gin.Context) {
	var req UpdatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	for name := range req.Permissions {
		if _, ok := knownPermissions[name]; !ok {
			BadRequest(c, "Unknown permission "+name)
			return
		}
	}

	user, ok := h.find(c)
	if !ok {
		return
	}

	user.Permissions = req.Permissions
	if err := h.db.WithContext(c.Request.Context()).Save(user).Error; err != nil {
		InternalError(c, "Failed to update permissions")
		return
	}

	slog.InfoContext(c.Request.Context(), "permissions changed",
		"label", "User", "user_id", user.ID, "permissions", user.Permissions)
	Success(c, newUserResponse(user))
}

// @Summary Delete user
// @Description Deletes the user together with the user's devices
// @Tags users
// @Param id path int true "user id"
// @Success 204
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	user, ok := h.find(c)
	if !ok {
		return
	}

	if err := h.devices.DeleteByUser(c.Request.Context(), user.ID); err != nil {
		InternalError(c, "Failed to delete user devices")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(user).Error; err != nil {
		InternalError(c, "Failed to delete user")
		return
	}

	NoContent(c)
}

func (h *UserHandler) find(c *gin.Context) (*models.User, bool) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "Invalid user ID")
		return nil, false
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		NotFound(c, "User not found")
		return nil, false
	}
	return &user, true
}
