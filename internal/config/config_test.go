package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxImportBytes != 8<<20 {
		t.Errorf("Expected 8 MiB import limit, got %d", cfg.Server.MaxImportBytes)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.Database.ConnMaxLifetime != 30*time.Minute {
		t.Errorf("Expected 30m conn lifetime, got %v", cfg.Database.ConnMaxLifetime)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Expected redis disabled by default, got %q", cfg.Redis.Addr)
	}
	if cfg.JWT.ExpireHour != 24 {
		t.Errorf("Expected 24 hour tokens, got %v", cfg.JWT.ExpireHour)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("Expected wildcard origin, got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Expected driver lowercased to postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected redis addr from env, got %q", cfg.Redis.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug log level, got %q", cfg.Log.Level)
	}
}
