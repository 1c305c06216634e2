package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Canvas-Copilot/backend/internal/models"
)

// ErrTaskNotFound indicates the task id is unknown to the status store.
var ErrTaskNotFound = errors.New("task not found")

// ErrIllegalTransition indicates a lifecycle transition that the state machine
// forbids. It signals a programming error, not a retryable condition.
var ErrIllegalTransition = errors.New("illegal task state transition")

// ClaimedTask is a unit of work a worker holds exclusive ownership of.
// Attempts counts the claim that produced this value.
type ClaimedTask struct {
	ID         string
	Credential string
	Payload    []byte
	Attempts   int
}

// TaskStatusView is the externally visible snapshot of a task. Result is set
// only on SUCCESS, ErrorSummary only on FAILURE.
type TaskStatusView struct {
	TaskID       string
	Status       models.TaskStatus
	Result       json.RawMessage
	ErrorSummary string
}

// TaskQueue is a durable, at-least-once work queue for grading tasks.
//
// Enqueue never blocks on worker availability. Claim atomically transitions a
// PENDING task to RUNNING under a lease, guaranteeing at most one active
// worker per task. Report methods are only legal from RUNNING; Retry returns
// the task to PENDING after a delay. PromoteDue and ReapExpired are the
// housekeeping half: they move delayed retries and lease-expired claims back
// onto the pending list.
type TaskQueue interface {
	Enqueue(ctx context.Context, credential string, payload []byte) (string, error)
	Claim(ctx context.Context) (*ClaimedTask, error)
	ReportSuccess(ctx context.Context, taskID string, result []byte) error
	ReportFailure(ctx context.Context, taskID string, summary string) error
	Retry(ctx context.Context, taskID string, summary string, delay time.Duration) error
	Status(ctx context.Context, taskID string) (TaskStatusView, error)
	PromoteDue(ctx context.Context) (int, error)
	ReapExpired(ctx context.Context) (int, error)
}
