package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ilker/timetable-server/internal/api"
	"github.com/ilker/timetable-server/internal/cache"
	"github.com/ilker/timetable-server/internal/config"
	"github.com/ilker/timetable-server/internal/logging"
	"github.com/ilker/timetable-server/internal/middleware"
	"github.com/ilker/timetable-server/internal/repository"
	"github.com/redis/go-redis/v9"
)

// @title Timetable API
// @version 1.0
// @description Devices, courses and lessons of the school notification service.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(logging.New(os.Stdout, cfg.Log))

	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()

	// Timetable lists live in Redis when configured, in memory otherwise
	var lists cache.ListCache = cache.NewMemoryCache()
	var limiter *middleware.RateLimiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			fatal("Failed to connect to redis", err, "addr", cfg.Redis.Addr)
		}
		defer rdb.Close()

		lists = cache.NewRedisCache(rdb, "timetable:", cfg.Redis.CacheTTL)
		limiter = middleware.NewRateLimiter(rdb)
		slog.Info("using redis for timetable lists", "addr", cfg.Redis.Addr)
	}

	timeTable := repository.NewTimeTable(db, lists)
	if err := timeTable.RebuildCourseList(context.Background()); err != nil {
		slog.Warn("initial timetable rebuild failed", "error", err)
	}

	r := api.NewRouter(api.Deps{
		DB:             db.DB,
		TimeTable:      timeTable,
		Devices:        repository.NewDeviceRepository(db),
		JWTAuth:        middleware.NewJWTAuth(cfg.JWT.Secret, cfg.JWT.ExpireHour),
		Limiter:        limiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxImportBytes: cfg.Server.MaxImportBytes,
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting server", "addr", addr, "driver", cfg.Database.Driver)
	if err := r.Run(addr); err != nil {
		fatal("Failed to start server", err)
	}
}

func fatal(msg string, err error, args ...any) {
	slog.Error(msg, append(args, "error", err)...)
	os.Exit(1)
}
