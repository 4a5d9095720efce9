package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/app"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/database"
)

// workspace is the configuration and migrated database a command operates on.
type workspace struct {
	cfg *app.Config
	db  *gorm.DB
}

func (r *workspace) Close() {
	if r != nil && r.db != nil {
		_ = database.Close(r.db)
	}
}

func loadConfig(path string) (*app.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return app.LoadConfig()
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return app.LoadConfig(path)
	case err == nil:
		return app.LoadConfig(filepath.Dir(path))
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config path %q does not exist", path)
	default:
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

// openWorkspace loads configuration and opens the database with the schema migrated.
func openWorkspace(configPath string) (*workspace, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg.Database.ConnectionConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	return &workspace{cfg: cfg, db: db}, nil
}
