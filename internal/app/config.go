package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ACCEPTCONNECT_SERVER_PORT.
const EnvPrefix = "ACCEPTCONNECT"

// Config represents the runtime configuration for the Accept & Connect backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Messages    MessagesConfig    `mapstructure:"messages"`
	Proximity   ProximityConfig   `mapstructure:"proximity"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Features    FeatureConfig     `mapstructure:"features"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	LogFormat       string          `mapstructure:"log_format"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	// Store selects the counter backend: memory or database.
	Store string `mapstructure:"store"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT     JWTSettings     `mapstructure:"jwt"`
	Session SessionSettings `mapstructure:"session"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// SessionSettings configures refresh tokens and session lifetimes.
type SessionSettings struct {
	RefreshTTL    time.Duration `mapstructure:"refresh_token_ttl"`
	RefreshLength int           `mapstructure:"refresh_token_length"`
}

// MessagesConfig controls consent message defaults.
type MessagesConfig struct {
	LinkTTL          time.Duration `mapstructure:"link_ttl"`
	SingleUseDefault bool          `mapstructure:"single_use_default"`
	ShareBaseURL     string        `mapstructure:"share_base_url"`
	MaxContentLength int           `mapstructure:"max_content_length"`
}

// ProximityConfig controls proximity session lifetimes.
type ProximityConfig struct {
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	MaxSessionTTL time.Duration `mapstructure:"max_session_ttl"`
}

// MaintenanceConfig holds cron specifications for the background sweeps.
type MaintenanceConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ProximitySchedule string `mapstructure:"proximity_schedule"`
	SessionSchedule   string `mapstructure:"session_schedule"`
	CacheSchedule     string `mapstructure:"cache_schedule"`
}

// MonitoringConfig enables metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// FeatureConfig toggles optional platform features.
type FeatureConfig struct {
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// NotificationConfig toggles the push notification stream.
type NotificationConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults. A .env
// file in the working directory is loaded first so its values act as environment overrides.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests", 100)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.rate_limit.store", "database")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/acceptconnect.sqlite")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.mysql.port", 3306)

	v.SetDefault("auth.jwt.issuer", "accept-connect")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.session.refresh_token_ttl", "720h") // 30 days
	v.SetDefault("auth.session.refresh_token_length", 48)

	v.SetDefault("messages.link_ttl", "24h")
	v.SetDefault("messages.single_use_default", true)
	v.SetDefault("messages.share_base_url", "")
	v.SetDefault("messages.max_content_length", 4000)

	v.SetDefault("proximity.session_ttl", "5m")
	v.SetDefault("proximity.max_session_ttl", "1h")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.proximity_schedule", "@every 5m")
	v.SetDefault("maintenance.session_schedule", "@hourly")
	v.SetDefault("maintenance.cache_schedule", "@every 10m")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")

	v.SetDefault("features.notifications.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
