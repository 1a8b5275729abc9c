package domain

import "time"

// JobState is the per-job lifecycle state
type JobState string

const (
	JobIdle    JobState = "idle"
	JobRunning JobState = "running"
	JobFailed  JobState = "failed"
)

// JobStatus is a read-only view of a scheduled job, exposed by the
// status endpoint. The scheduler owns the live descriptor.
type JobStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	State     JobState      `json:"state"`
	LastRun   time.Time     `json:"last_run"`
	LastError string        `json:"last_error,omitempty"`
}
