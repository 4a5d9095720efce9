package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/xoen85/accept-connect-app-oqvfkg/internal/auth"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/cache"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/monitoring"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/logger"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/metrics"
)

const (
	defaultProximitySpec = "@every 5m"
	defaultSessionSpec   = "@hourly"
	defaultCacheSpec     = "@every 10m"
	jobTimeout           = time.Minute
)

// Cleaner coordinates background maintenance tasks: purging expired proximity sessions, expired
// or revoked refresh sessions and expired cache entries.
type Cleaner struct {
	proximity *services.ProximityService
	sessions  *iauth.SessionService
	cache     cache.ExpiringStore
	cron      *cron.Cron
	log       *zap.Logger
	tracker   *monitoring.JobTracker

	proximitySchedule string
	sessionSchedule   string
	cacheSchedule     string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithLogger attaches a logger for job failures.
func WithLogger(log *zap.Logger) Option {
	return func(cleaner *Cleaner) {
		cleaner.log = logger.Module(log, "maintenance")
	}
}

// WithTracker records every job run so health probes can report on sweeps.
func WithTracker(tracker *monitoring.JobTracker) Option {
	return func(cleaner *Cleaner) {
		cleaner.tracker = tracker
	}
}

// WithProximitySchedule overrides the cron specification for proximity session cleanup.
func WithProximitySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.proximitySchedule = spec
		}
	}
}

// WithSessionSchedule overrides the cron specification for refresh session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache entry cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(proximity *services.ProximityService, sessions *iauth.SessionService, store cache.ExpiringStore, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		proximity:         proximity,
		sessions:          sessions,
		cache:             store,
		log:               zap.NewNop(),
		proximitySchedule: defaultProximitySpec,
		sessionSchedule:   defaultSessionSpec,
		cacheSchedule:     defaultCacheSpec,
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

type job struct {
	table    string
	schedule string
	run      func(context.Context) (int64, error)
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.proximity != nil {
		jobs = append(jobs, job{table: "proximity_sessions", schedule: c.proximitySchedule, run: c.proximity.DeleteExpired})
	}
	if c.sessions != nil {
		jobs = append(jobs, job{table: "sessions", schedule: c.sessionSchedule, run: c.sessions.CleanupExpired})
	}
	if c.cache != nil {
		jobs = append(jobs, job{table: "cache_entries", schedule: c.cacheSchedule, run: c.cache.DeleteExpired})
	}
	return jobs
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		c.tracker.Register(j.table)
		if _, err := c.cron.AddFunc(j.schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := c.runJob(ctx, j); err != nil {
				c.log.Warn("maintenance job failed", zap.String("table", j.table), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s cleanup %q: %w", j.table, j.schedule, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, returning a context that is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially and reports the rows removed per
// table. Every job runs even when an earlier one fails.
func (c *Cleaner) RunOnce(ctx context.Context) (map[string]int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	removed := make(map[string]int64)
	var errs error
	for _, j := range c.jobs() {
		count, err := c.runJob(ctx, j)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed[j.table] = count
	}
	return removed, errs
}

func (c *Cleaner) runJob(ctx context.Context, j job) (int64, error) {
	start := time.Now()
	count, err := j.run(ctx)
	c.tracker.Record(j.table, err, time.Since(start))
	if err != nil {
		return 0, err
	}
	if count > 0 {
		metrics.SweptRecords.WithLabelValues(j.table).Add(float64(count))
		c.log.Debug("maintenance sweep", zap.String("table", j.table), zap.Int64("removed", count))
	}
	return count, nil
}
