package checks

import (
	"context"
	"strings"
	"time"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// Maintenance verifies that background sweeps keep succeeding. A job whose latest runs all failed
// marks the probe down; a job that has not run within maxAge degrades it.
func Maintenance(tracker *monitoring.JobTracker, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		jobs := tracker.Snapshot()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance jobs registered"}
		}

		now := time.Now()
		status := monitoring.StatusUp
		var notes []string

		for _, job := range jobs {
			switch {
			case job.TotalRuns == 0:
				notes = append(notes, job.Job+": pending first run")
			case job.ConsecutiveFailures > 0:
				status = monitoring.StatusDown
				notes = append(notes, job.Job+": "+job.LastError)
			case now.Sub(job.LastRunAt) > maxAge:
				if status != monitoring.StatusDown {
					status = monitoring.StatusDegraded
				}
				notes = append(notes, job.Job+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(notes, "; ")}
	})
}
