package app

import (
	"go.uber.org/zap"

	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/logger"
)

// NewLogger builds the root logger from the server section, defaulting to info level JSON output.
func NewLogger(cfg ServerConfig) (*zap.Logger, error) {
	return logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
}
