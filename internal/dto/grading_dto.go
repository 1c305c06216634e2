package dto

import (
	"encoding/json"
	"time"

	"github.com/Canvas-Copilot/backend/internal/models"
)

// RequestGradingDto is the grading request accepted at enqueue time. It is
// serialized as-is into the task payload and never mutated afterwards.
type RequestGradingDto struct {
	Course           models.Course            `json:"course" validate:"required"`
	Assignment       models.Assignment        `json:"assignment" validate:"required"`
	Submissions      []models.Submission      `json:"submissions" validate:"required,min=1,unique=ID,dive"`
	GradingSettings  *models.GradingSettings  `json:"grading_settings,omitempty" validate:"omitempty"`
	FeedbackSettings *models.FeedbackSettings `json:"feedback_settings,omitempty" validate:"omitempty"`
}

// GradingFeedback holds the graded outcome for a single submission.
type GradingFeedback struct {
	SubmissionID int64   `json:"submission_id"`
	Score        float64 `json:"score"`
	Feedback     string  `json:"feedback"`
}

// GradingFeedbackResponse maps submission id to its grading outcome. A
// successful task carries exactly one entry per submission of the request.
type GradingFeedbackResponse map[int64]GradingFeedback

// EnqueueResponse acknowledges task creation.
type EnqueueResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatusResponse is the polling payload. Result is present only on
// SUCCESS, ErrorSummary only on FAILURE.
type TaskStatusResponse struct {
	TaskID       string            `json:"task_id"`
	Status       models.TaskStatus `json:"status"`
	Result       json.RawMessage   `json:"result"`
	ErrorSummary *string           `json:"error_summary"`
}

// TaskEvent describes a task lifecycle transition published to subscribers.
type TaskEvent struct {
	TaskID string            `json:"task_id"`
	Status models.TaskStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
	At     time.Time         `json:"at"`
}
