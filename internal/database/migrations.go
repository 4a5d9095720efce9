package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/models"
)

// Models lists every persistent model in migration order.
func Models() []any {
	return []any{
		&models.User{},
		&models.Session{},
		&models.Message{},
		&models.ProximitySession{},
		&models.CacheEntry{},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
