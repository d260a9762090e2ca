// Package reports persists task run outcomes to a local SQLite database.
package reports

import "time"

// RunRecord is one stored task run.
type RunRecord struct {
	// ID is the run UUID assigned by the task runner.
	ID string `json:"id"`

	// Task is the executed task name.
	Task string `json:"task"`

	// StartedAt and FinishedAt bound the whole run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Failed reports whether any host failed.
	Failed bool `json:"failed"`

	CreatedAt time.Time `json:"created_at"`
}

// HostRecord is one per-host outcome within a run.
type HostRecord struct {
	ID    string `json:"id"`
	RunID string `json:"run_id"`

	// Host is the target in user@host:port syntax.
	Host string `json:"host"`

	// Status is the outcome (success, failed, skipped).
	Status string `json:"status"`

	// Error holds the failure message for failed hosts.
	Error *string `json:"error,omitempty"`

	// DurationMS is the execution time in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	CreatedAt time.Time `json:"created_at"`
}
