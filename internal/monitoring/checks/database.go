package checks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/database"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database returns a readiness probe that pings the database handle.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	if timeout <= 0 {
		timeout = defaultDatabaseTimeout
	}

	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ResultFromError(errors.New("database not configured"), time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return monitoring.ResultFromError(database.Ping(probeCtx, db), time.Since(start))
	})
}
