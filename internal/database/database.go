// Package database opens the gorm connection and owns the schema.
package database

import (
	"fmt"
	"strings"
	"time"

	"hotel-plan-finder/internal/config"
	"hotel-plan-finder/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormDB struct {
	db *gorm.DB
}

// NewGormDB connects with the configured driver and pings the database
func NewGormDB(cfg config.DatabaseConfig) (*GormDB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormDB{db: db}, nil
}

// Dialector picks the gorm driver for cfg.Type
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Type) {
	case "mysql":
		dsn := cfg.DSN
		if dsn == "" {
			m := cfg.MySQL
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				m.User, m.Password, m.Host, portOr(m.Port, 3306), m.Database)
		}
		return mysql.Open(dsn), nil
	case "postgres", "postgresql":
		dsn := cfg.DSN
		if dsn == "" {
			p := cfg.Postgres
			sslMode := p.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
				p.Host, portOr(p.Port, 5432), p.User, p.Password, p.Database, sslMode)
		}
		return postgres.Open(dsn), nil
	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.SQLite.Path
		}
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Type)
	}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	return Migrate(gdb.db)
}

// Migrate creates or updates the plan and outbox tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PlanRecord{},
		&models.PlanEvent{},
	)
}

func portOr(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
