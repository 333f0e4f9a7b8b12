package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/ilker/timetable-server/docs"
	"github.com/ilker/timetable-server/internal/handlers"
	"github.com/ilker/timetable-server/internal/middleware"
	"github.com/ilker/timetable-server/internal/models"
	"github.com/ilker/timetable-server/internal/repository"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Deps are the components the HTTP layer is built from. Limiter may be nil,
// in which case login is not rate limited.
type Deps struct {
	DB             *gorm.DB
	TimeTable      *repository.TimeTable
	Devices        *repository.DeviceRepository
	JWTAuth        *middleware.JWTAuth
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	MaxImportBytes int64
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowOrigins = d.AllowedOrigins
	if len(d.AllowedOrigins) == 0 || (len(d.AllowedOrigins) == 1 && d.AllowedOrigins[0] == "*") {
		config.AllowOrigins = nil
		config.AllowAllOrigins = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	config.ExposeHeaders = []string{middleware.RequestIDHeader}
	r.Use(cors.New(config))

	authHandler := handlers.NewAuthHandler(d.DB, d.JWTAuth)
	userHandler := handlers.NewUserHandler(d.DB, d.Devices)
	deviceHandler := handlers.NewDeviceHandler(d.Devices)
	timeTableHandler := handlers.NewTimeTableHandler(d.TimeTable, d.MaxImportBytes)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))
	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/swagger/index.html")
	})

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", limited(d.Limiter, "register", 10, time.Hour, authHandler.Register)...)
			auth.POST("/login", limited(d.Limiter, "login", 5, time.Minute, authHandler.Login)...)
		}

		authProtected := v1.Group("/auth")
		authProtected.Use(d.JWTAuth.Middleware())
		{
			authProtected.GET("/me", authHandler.Me)
		}

		users := v1.Group("/users")
		users.Use(d.JWTAuth.Middleware(), middleware.AdminMiddleware())
		{
			users.GET("", userHandler.List)
			users.GET("/:id", userHandler.Get)
			users.PATCH("/:id", userHandler.Update)
			users.PATCH("/:id/permissions", userHandler.UpdatePermissions)
			users.DELETE("/:id", userHandler.Delete)
		}

		devices := v1.Group("/devices")
		devices.Use(d.JWTAuth.Middleware())
		{
			devices.GET("", deviceHandler.List)
			devices.POST("", deviceHandler.Create)
			devices.DELETE("/:id", deviceHandler.Delete)
			devices.DELETE("/identifier/:identifier", deviceHandler.Remove)
		}

		timetable := v1.Group("/timetable")
		timetable.Use(d.JWTAuth.Middleware(), middleware.RequirePermission(models.PermTimeTable))
		{
			admin := middleware.RequirePermission(models.PermTimeTableAdmin)
			timetable.POST("/lessons", admin, timeTableHandler.PostLessons)
			timetable.POST("/lessons/import", admin, timeTableHandler.ImportLessons)
			timetable.GET("/lessons", timeTableHandler.Lessons)
			timetable.POST("/find/course", timeTableHandler.FindCourse)
			timetable.GET("/grades", timeTableHandler.Grades)
			timetable.GET("/courses", timeTableHandler.Courses)
			timetable.GET("/rebuild", timeTableHandler.Rebuild)
		}
	}

	return r
}

func limited(l *middleware.RateLimiter, key string, limit int, window time.Duration, h gin.HandlerFunc) []gin.HandlerFunc {
	if l == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{l.Limit(key, limit, window), h}
}
