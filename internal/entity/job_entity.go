package entity

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobUpdate is a lifecycle event emitted by the job scheduler.
type JobUpdate struct {
	Id          string         `json:"id"`
	Name        string         `json:"name"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress,omitempty"`
	Attempts    int            `json:"attempts,omitempty"`
	Error       string         `json:"error,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// JobStats is an aggregate snapshot of the queue.
type JobStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Scheduled int `json:"scheduled"`
}
