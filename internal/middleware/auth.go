package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ilker/timetable-server/internal/logging"
	"github.com/ilker/timetable-server/internal/models"
)

// Error codes of the envelopes written by this package.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeTooMany      = "TOO_MANY_REQUESTS"
)

type Claims struct {
	UserID      uint               `json:"user_id"`
	Email       string             `json:"email"`
	Permissions models.Permissions `json:"permissions"`
	jwt.RegisteredClaims
}

type JWTAuth struct {
	Secret     string
	ExpireHour time.Duration
}

func NewJWTAuth(secret string, expireHour time.Duration) *JWTAuth {
	return &JWTAuth{
		Secret:     secret,
		ExpireHour: expireHour,
	}
}

func (j *JWTAuth) GenerateToken(userID uint, email string, permissions models.Permissions) (string, error) {
	claims := &Claims{
		UserID:      userID,
		Email:       email,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.ExpireHour * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.Secret))
}

func (j *JWTAuth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(j.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

func (j *JWTAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": CodeUnauthorized, "message": "Authorization header required"},
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": CodeUnauthorized, "message": "Invalid authorization header format"},
			})
			c.Abort()
			return
		}

		claims, err := j.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": CodeUnauthorized, "message": "Invalid or expired token"},
			})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("permissions", claims.Permissions)
		c.Next()
	}
}

// RequirePermission aborts with a bare 401 unless the token grants perm.
// The violation is logged at NOTICE with the path and user id.
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if HasPermission(c, perm) {
			c.Next()
			return
		}
		LogPrivilegeViolation(c, perm)
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}

// LogPrivilegeViolation records a request that lacked perm.
func LogPrivilegeViolation(c *gin.Context, perm string) {
	logging.Notice(c.Request.Context(), "Privileges violation",
		"label", "Privileges violation",
		"path", c.Request.URL.Path,
		"user_id", GetUserID(c),
		"permission", perm,
	)
}

// AdminMiddleware checks the admin permission flag
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasPermission(c, models.PermAdmin) {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": CodeForbidden, "message": "Admin access required"},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	userID, exists := c.Get("user_id")
	if !exists {
		return 0
	}
	return userID.(uint)
}

func GetEmail(c *gin.Context) string {
	email, exists := c.Get("email")
	if !exists {
		return ""
	}
	return email.(string)
}

func GetPermissions(c *gin.Context) models.Permissions {
	perms, exists := c.Get("permissions")
	if !exists {
		return nil
	}
	return perms.(models.Permissions)
}

func HasPermission(c *gin.Context, perm string) bool {
	return GetPermissions(c).Has(perm)
}
