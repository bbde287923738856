package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"attendance-kiosk/config"
	"attendance-kiosk/internal/core/models"

	"github.com/glebarez/sqlite" // Pure Go
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"
)

// DB holds the global GORM database connection pool.
var DB *gorm.DB

// Init opens the journal database configured in cfg and stores it in DB.
func Init(cfg config.DBConfig) error {
	dbDir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		log.Errorf("Failed to create database directory '%s': %v", dbDir, err)
		return err
	}

	db, err := Open(cfg.File)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to the sqlite file at dsn and runs migrations. ":memory:"
// is accepted for tests.
func Open(dsn string) (*gorm.DB, error) {
	// GORM logs through the configured logrus instance
	gormLogger := gormlog.New(
		log.StandardLogger(),
		gormlog.Config{
			SlowThreshold:             time.Second * 2,
			LogLevel:                  gormlog.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Infof("Connecting to database: %s", dsn)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		log.Errorf("Failed to connect to database '%s': %v", dsn, err)
		return nil, err
	}

	// sqlite allows one writer; a single connection also keeps :memory: shared.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	log.Info("Running database migrations...")
	if err := db.AutoMigrate(&models.Attendance{}); err != nil {
		log.Errorf("Database migration failed: %v", err)
		return nil, err
	}
	log.Info("Database migrations completed.")
	return db, nil
}

// GetDB returns the initialized GORM DB instance.
func GetDB() (*gorm.DB, error) {
	if DB == nil {
		return nil, errors.New("database is not initialized")
	}
	return DB, nil
}

// Close releases the global connection.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	DB = nil
	return sqlDB.Close()
}
