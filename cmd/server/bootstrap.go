package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/api"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/app"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/app/maintenance"
	iauth "github.com/xoen85/accept-connect-app-oqvfkg/internal/auth"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/cache"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/database"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/middleware"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/monitoring"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/monitoring/checks"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/notifications"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Hub       *notifications.Hub
	Health    *monitoring.HealthManager
	Sessions  *iauth.SessionService
	Messages  *services.MessageService
	Proximity *services.ProximityService
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime opens the database, wires services and background jobs, and builds the router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	dbStore := cache.NewDatabaseStore(stack.DB)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Sessions, err = iauth.NewSessionService(stack.DB, jwtSvc, cfg.Auth.SessionServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	users, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	// A typed nil *Hub would still satisfy the interface, so the notifier stays untyped nil.
	var notifier services.Notifier
	if cfg.Features.Notifications.Enabled {
		stack.Hub = notifications.NewHub(log)
		notifier = stack.Hub
	}

	stack.Messages, err = services.NewMessageService(stack.DB, cfg.Messages.ServiceOptions(log, notifier)...)
	if err != nil {
		return nil, fmt.Errorf("initialise message service: %w", err)
	}

	stack.Proximity, err = services.NewProximityService(stack.DB, stack.Messages, cfg.Proximity.ServiceOptions(log, notifier)...)
	if err != nil {
		return nil, fmt.Errorf("initialise proximity service: %w", err)
	}

	stack.Health = monitoring.NewHealthManager()
	stack.Health.RegisterReadiness(checks.Database(stack.DB, 0))

	if cfg.Maintenance.Enabled {
		tracker := monitoring.NewJobTracker()
		stack.Health.RegisterReadiness(checks.Maintenance(tracker, 0))

		stack.Cleaner = maintenance.NewCleaner(stack.Proximity, stack.Sessions, dbStore,
			maintenance.WithLogger(log),
			maintenance.WithTracker(tracker),
			maintenance.WithProximitySchedule(cfg.Maintenance.ProximitySchedule),
			maintenance.WithSessionSchedule(cfg.Maintenance.SessionSchedule),
			maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.RateStore = newRateStore(cfg.Server.RateLimit, dbStore)

	stack.Router, err = api.NewRouter(api.Deps{
		Config:    cfg,
		DB:        stack.DB,
		JWT:       jwtSvc,
		Sessions:  stack.Sessions,
		Users:     users,
		Messages:  stack.Messages,
		Proximity: stack.Proximity,
		Hub:       stack.Hub,
		Health:    stack.Health,
		RateStore: stack.RateStore,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, runs a final sweep and releases the database.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if _, err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func newRateStore(cfg app.RateLimitConfig, store cache.Store) middleware.RateStore {
	if strings.EqualFold(strings.TrimSpace(cfg.Store), "memory") || store == nil {
		return middleware.NewMemoryRateStore()
	}
	return middleware.NewDatabaseRateStore(store)
}

func initialiseDatabase(ctx context.Context, cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Ping(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.Module(log, "database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
