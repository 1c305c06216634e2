package models

// TaskStatus is the lifecycle state of a grading task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is queued and waiting for a worker.
	TaskStatusPending TaskStatus = "PENDING"
	// TaskStatusRunning indicates a worker holds the claim and is grading.
	TaskStatusRunning TaskStatus = "RUNNING"
	// TaskStatusSuccess indicates grading finished and a result is available.
	TaskStatusSuccess TaskStatus = "SUCCESS"
	// TaskStatusFailure indicates the task failed terminally.
	TaskStatusFailure TaskStatus = "FAILURE"
)

// IsTerminal reports whether the status can no longer change.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailure
}

// Valid reports whether s is one of the four known lifecycle states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSuccess, TaskStatusFailure:
		return true
	}
	return false
}
