package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how New builds a logger.
type Options struct {
	Level  string
	Format string // json (default) or console
}

// New builds a production zap logger for the supplied level. Unknown levels fall back to info.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(opts.Format), "console") {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))
	cfg.DisableStacktrace = true

	return cfg.Build()
}

// ParseLevel converts a textual level into a zapcore.Level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return zapLevel
}

// Module returns a child logger annotated with the module name. A nil base yields a no-op logger
// so components constructed without logging stay silent.
func Module(base *zap.Logger, module string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.With(zap.String("module", module))
}

// OrNop returns log, or a no-op logger when log is nil.
func OrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
