package types

import "time"

// AuditEntry is one append-only row of the audit log.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"` // "<domain>.<operation>"
	TaskID    string    `json:"taskId,omitempty"`
	Actor     string    `json:"actor"`
	Details   map[string]any `json:"details,omitempty"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// JobStatus is the lifecycle status of a background job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// BackgroundJob tracks one long-running operation.
type BackgroundJob struct {
	ID          string    `json:"id"`
	Operation   string    `json:"operation"`
	Status      JobStatus `json:"status"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Result      any       `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	Progress    int       `json:"progress"`
}
