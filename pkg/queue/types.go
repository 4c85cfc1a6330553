package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is used when no queue is specified.
const DefaultQueueName = "default"

// DefaultMaxAttempts bounds retries so a persistently broken input cannot
// grow the backlog forever.
const DefaultMaxAttempts int8 = 5

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is a unit of asynchronous work.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	TaskName    string     `json:"task_name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      TaskStatus `json:"status"`
	Attempts    int8       `json:"attempts"`
	MaxAttempts int8       `json:"max_attempts"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DeadTask is a task that exhausted all attempts, parked for manual
// inspection and recovery.
type DeadTask struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	Queue     string    `json:"queue"`
	TaskName  string    `json:"task_name"`
	Payload   []byte    `json:"payload,omitempty"`
	Error     string    `json:"error"`
	Attempts  int8      `json:"attempts"`
	FailedAt  time.Time `json:"failed_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Backoff computes the delay before retry attempt n (1-based): polynomial
// growth (n^2 * 30s) spreads retries out fast enough to ride out multi-minute
// outages without hammering a struggling dependency.
func Backoff(attempt int8) time.Duration {
	n := time.Duration(attempt)
	return n * n * 30 * time.Second
}
