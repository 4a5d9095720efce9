package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/app"
	iauth "github.com/xoen85/accept-connect-app-oqvfkg/internal/auth"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/handlers"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/middleware"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/monitoring"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/monitoring/checks"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/notifications"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
)

// Deps bundles the long-lived services the HTTP surface is built from.
type Deps struct {
	Config    *app.Config
	DB        *gorm.DB
	JWT       *iauth.JWTService
	Sessions  *iauth.SessionService
	Users     *services.UserService
	Messages  *services.MessageService
	Proximity *services.ProximityService
	// Hub is optional; without it the push stream route is not registered.
	Hub       *notifications.Hub
	// Health defaults to a manager probing only the database.
	Health    *monitoring.HealthManager
	RateStore middleware.RateStore
	Logger    *zap.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Config == nil:
		return errors.New("config must be provided")
	case d.DB == nil:
		return errors.New("database handle must be provided")
	case d.JWT == nil:
		return errors.New("jwt service must be provided")
	case d.Sessions == nil:
		return errors.New("session service must be provided")
	case d.Users == nil:
		return errors.New("user service must be provided")
	case d.Messages == nil:
		return errors.New("message service must be provided")
	case d.Proximity == nil:
		return errors.New("proximity service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	if limit := cfg.Server.RateLimit; limit.Enabled {
		r.Use(middleware.RateLimit(deps.RateStore, limit.Requests, limit.Window))
	}

	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager()
		health.RegisterReadiness(checks.Database(deps.DB, 0))
	}
	registerHealthRoutes(r, handlers.NewHealthHandler(health))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requireAuth := middleware.Auth(deps.JWT)
	api := r.Group("/api")

	registerAuthRoutes(api, requireAuth, handlers.NewAuthHandler(deps.Users, deps.Sessions))
	registerMessageRoutes(api, requireAuth, handlers.NewMessageHandler(deps.Messages))
	registerProximityRoutes(api, requireAuth, handlers.NewProximityHandler(deps.Proximity))

	if deps.Hub != nil && cfg.Features.Notifications.Enabled {
		registerNotificationRoutes(api, middleware.Auth(deps.JWT, middleware.AllowQueryToken()), handlers.NewNotificationHandler(deps.Hub))
	}

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}
