package monitoring

import (
	"sort"
	"sync"
	"time"
)

// JobStatus summarises the run history of one background job.
type JobStatus struct {
	Job                 string        `json:"job"`
	TotalRuns           uint64        `json:"total_runs"`
	Failures            uint64        `json:"failures"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastError           string        `json:"last_error,omitempty"`
	LastDuration        time.Duration `json:"last_duration"`
}

// JobTracker records the outcome of background job runs.
type JobTracker struct {
	mu   sync.Mutex
	jobs map[string]*JobStatus
	now  func() time.Time
}

// NewJobTracker constructs an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{
		jobs: make(map[string]*JobStatus),
		now:  time.Now,
	}
}

// Register makes job visible before its first run.
func (t *JobTracker) Register(job string) {
	if t == nil || job == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(job)
}

// Record stores the outcome of a single run of job.
func (t *JobTracker) Record(job string, err error, duration time.Duration) {
	if t == nil || job == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	status := t.entry(job)
	status.TotalRuns++
	status.LastRunAt = t.now().UTC()
	status.LastDuration = duration
	if err != nil {
		status.Failures++
		status.ConsecutiveFailures++
		status.LastError = err.Error()
		return
	}
	status.ConsecutiveFailures = 0
	status.LastError = ""
}

// Snapshot returns a copy of every job status ordered by name.
func (t *JobTracker) Snapshot() []JobStatus {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]JobStatus, 0, len(t.jobs))
	for _, status := range t.jobs {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

func (t *JobTracker) entry(job string) *JobStatus {
	status, ok := t.jobs[job]
	if !ok {
		status = &JobStatus{Job: job}
		t.jobs[job] = status
	}
	return status
}
