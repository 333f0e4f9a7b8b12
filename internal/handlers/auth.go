package handlers

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/ilker/timetable-server/internal/middleware"
	"github.com/ilker/timetable-server/internal/models"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db      *gorm.DB
	jwtAuth *middleware.JWTAuth

	// registerMu serializes the email and first-user checks with the
	// insert. Separate server processes registering the very first user at
	// once can still both end up with every permission.
	registerMu sync.Mutex
}

func NewAuthHandler(db *gorm.DB, jwtAuth *middleware.JWTAuth) *AuthHandler {
	return &AuthHandler{
		db:      db,
		jwtAuth: jwtAuth,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=60"`
	Email    string `json:"email" binding:"required,email,max=60"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID          uint               `json:"id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Permissions models.Permissions `json:"permissions"`
	IsActive    bool               `json:"is_active"`
	CreatedAt   string             `json:"created_at"`
}

func newUserResponse(u *models.User) UserResponse {
	perms := u.Permissions
	if perms == nil {
		perms = models.Permissions{}
	}
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Permissions: perms,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// @Summary Register
// @Description The first registered user receives every permission
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "account"
// @Success 201 {object} Response{data=AuthResponse}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	user := models.User{
		Name:        req.Name,
		Email:       req.Email,
		Permissions: models.Permissions{},
		IsActive:    true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		InternalError(c, "Failed to process password")
		return
	}

	h.registerMu.Lock()
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		if err := tx.Where("email = ?", req.Email).Limit(1).Find(&existing).Error; err != nil {
			return err
		}
		if existing.ID != 0 {
			return gorm.ErrDuplicatedKey
		}

		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			user.Permissions = models.AllPermissions()
		}
		return tx.Create(&user).Error
	})
	h.registerMu.Unlock()
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Conflict(c, "Email already registered")
			return
		}
		slog.ErrorContext(c.Request.Context(), "failed to create user", "label", "Auth", "error", err)
		InternalError(c, "Failed to create user")
		return
	}

	token, err := h.jwtAuth.GenerateToken(user.ID, user.Email, user.Permissions)
	if err != nil {
		InternalError(c, "Failed to generate token")
		return
	}

	Created(c, AuthResponse{Token: token, User: newUserResponse(&user)})
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "credentials"
// @Success 200 {object} Response{data=AuthResponse}
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 429 {object} Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		Unauthorized(c, "Invalid email or password")
		return
	}

	if !user.CheckPassword(req.Password) {
		Unauthorized(c, "Invalid email or password")
		return
	}

	if !user.IsActive {
		Forbidden(c, "Account disabled")
		return
	}

	token, err := h.jwtAuth.GenerateToken(user.ID, user.Email, user.Permissions)
	if err != nil {
		InternalError(c, "Failed to generate token")
		return
	}

	Success(c, AuthResponse{Token: token, User: newUserResponse(&user)})
}

// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} Response{data=UserResponse}
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, middleware.GetUserID(c)).Error; err != nil {
		NotFound(c, "User not found")
		return
	}

	Success(c, newUserResponse(&user))
}
