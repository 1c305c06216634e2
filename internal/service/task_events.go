package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Canvas-Copilot/backend/internal/dto"
	"github.com/Canvas-Copilot/backend/internal/models"
)

const taskEventSubjectBase = "copilot.grading.tasks"

// TaskEventPublisher fans task lifecycle transitions out over NATS so other
// services can react without polling. A nil connection disables publishing;
// publish failures are logged and never fail the pipeline.
type TaskEventPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
	now    func() time.Time
}

// NewTaskEventPublisher builds the publisher. conn may be nil.
func NewTaskEventPublisher(conn *nats.Conn, logger zerolog.Logger) *TaskEventPublisher {
	return &TaskEventPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "task_events").Logger(),
		now:    time.Now,
	}
}

// Publish emits one lifecycle event for the task.
func (p *TaskEventPublisher) Publish(taskID string, status models.TaskStatus, errSummary string) {
	if p == nil || p.conn == nil {
		return
	}

	event := dto.TaskEvent{
		TaskID: taskID,
		Status: status,
		Error:  errSummary,
		At:     p.now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to marshal task event")
		return
	}

	subject := taskEventSubjectBase + "." + strings.ToLower(string(status))
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("task_id", taskID).Str("subject", subject).Msg("failed to publish task event")
	}
}
