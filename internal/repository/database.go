package repository

import (
	"context"
	"fmt"

	"github.com/ilker/timetable-server/internal/config"
	"github.com/ilker/timetable-server/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectionSource hands out one pooled connection for the duration of fn.
// The connection is returned to the pool when fn returns, whatever the outcome.
// Every query chain started on conn is independent of the previous one.
type ConnectionSource interface {
	WithConnection(ctx context.Context, fn func(conn *gorm.DB) error) error
}

type Database struct {
	DB *gorm.DB
}

func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database.dsn is required for the postgres driver")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &Database{DB: db}, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.DeviceRow{},
		&models.Course{},
		&models.Lesson{},
	)
}

func (d *Database) WithConnection(ctx context.Context, fn func(conn *gorm.DB) error) error {
	return d.DB.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		// Connection hands out a shared statement; without a new session the
		// clauses of one query leak into the next.
		return fn(tx.Session(&gorm.Session{NewDB: true}))
	})
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
