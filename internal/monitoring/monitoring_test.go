package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/database"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/monitoring"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/monitoring/checks"
)

func TestHealthManagerAggregatesWorstStatus(t *testing.T) {
	manager := monitoring.NewHealthManager()

	report := manager.EvaluateReadiness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Empty(t, report.Checks)

	manager.RegisterReadiness(monitoring.NewCheck("ok", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("slow", func(context.Context) monitoring.ProbeResult {
		return monitoring.ResultFromError(context.DeadlineExceeded, time.Millisecond)
	}))
	manager.RegisterReadiness(monitoring.Check{})

	report = manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "slow", report.Checks[1].Component)

	manager.RegisterReadiness(monitoring.NewCheck("broken", func(context.Context) monitoring.ProbeResult {
		panic("boom")
	}))
	report = manager.EvaluateReadiness(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Contains(t, report.Checks[2].Details, "boom")

	require.True(t, manager.EvaluateLiveness(context.Background()).Success)
}

func TestNewCheckWithoutProbeReportsDown(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("empty", nil))

	report := manager.EvaluateLiveness(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "empty", report.Checks[0].Component)
}

func TestDatabaseCheck(t *testing.T) {
	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)

	check := checks.Database(db, time.Second)
	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)

	require.NoError(t, database.Close(db))
	require.Equal(t, monitoring.StatusDown, check.Run(context.Background()).Status)

	require.Equal(t, monitoring.StatusDown, checks.Database(nil, 0).Run(context.Background()).Status)
}

func TestMaintenanceCheck(t *testing.T) {
	tracker := monitoring.NewJobTracker()
	check := checks.Maintenance(tracker, time.Hour)

	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	tracker.Register("sessions")
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "pending first run")

	tracker.Record("sessions", errors.New("table locked"), time.Millisecond)
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "table locked")

	tracker.Record("sessions", nil, time.Millisecond)
	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 1)
	require.Equal(t, uint64(2), jobs[0].TotalRuns)
	require.Equal(t, uint64(1), jobs[0].Failures)
	require.Zero(t, jobs[0].ConsecutiveFailures)
	require.Empty(t, jobs[0].LastError)
}
