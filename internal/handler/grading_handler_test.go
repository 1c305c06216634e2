package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Canvas-Copilot/backend/internal/dto"
	"github.com/Canvas-Copilot/backend/internal/models"
	"github.com/Canvas-Copilot/backend/internal/queue"
	"github.com/Canvas-Copilot/backend/internal/service"
	"github.com/Canvas-Copilot/backend/internal/utils"
)

type stubQueue struct {
	enqueueID      string
	enqueueErr     error
	enqueueCalls   int
	lastCredential string
	lastPayload    []byte

	statusView queue.TaskStatusView
	statusErr  error
}

func (s *stubQueue) Enqueue(_ context.Context, credential string, payload []byte) (string, error) {
	s.enqueueCalls++
	s.lastCredential = credential
	s.lastPayload = payload
	return s.enqueueID, s.enqueueErr
}

func (s *stubQueue) Claim(context.Context) (*queue.ClaimedTask, error) { return nil, nil }
func (s *stubQueue) ReportSuccess(context.Context, string, []byte) error {
	return nil
}
func (s *stubQueue) ReportFailure(context.Context, string, string) error { return nil }
func (s *stubQueue) Retry(context.Context, string, string, time.Duration) error {
	return nil
}
func (s *stubQueue) Status(context.Context, string) (queue.TaskStatusView, error) {
	return s.statusView, s.statusErr
}
func (s *stubQueue) PromoteDue(context.Context) (int, error)  { return 0, nil }
func (s *stubQueue) ReapExpired(context.Context) (int, error) { return 0, nil }

func newTestApp(stub *stubQueue) *fiber.App {
	app := fiber.New()
	validate := validator.New(validator.WithRequiredStructEnabled())
	events := service.NewTaskEventPublisher(nil, zerolog.Nop())
	h := NewGradingHandler(stub, events, validate, zerolog.Nop())
	h.Register(app.Group("/api/v1/grading"))
	return app
}

func validGradingRequest() dto.RequestGradingDto {
	return dto.RequestGradingDto{
		Course: models.Course{ID: 101, Name: "Biology 101"},
		Assignment: models.Assignment{
			ID:             555,
			Name:           "Cell Structure Essay",
			PointsPossible: 10,
			GradingType:    models.GradingTypePoints,
		},
		Submissions: []models.Submission{
			{ID: 9001, Body: "The mitochondria is the powerhouse of the cell.", WorkflowState: models.WorkflowStateSubmitted},
		},
	}
}

func decodeEnvelope(t *testing.T, body io.Reader) (utils.APIResponse, json.RawMessage) {
	t.Helper()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	return utils.APIResponse{Success: envelope.Success, Message: envelope.Message}, envelope.Data
}

func TestGenerateEnqueuesTask(t *testing.T) {
	stub := &stubQueue{enqueueID: "task-abc"}
	app := newTestApp(stub)

	body, err := json.Marshal(validGradingRequest())
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/grading/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer opaque-credential")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	envelope, data := decodeEnvelope(t, resp.Body)
	require.True(t, envelope.Success)

	var enqueue dto.EnqueueResponse
	require.NoError(t, json.Unmarshal(data, &enqueue))
	require.Equal(t, "task-abc", enqueue.TaskID)

	require.Equal(t, 1, stub.enqueueCalls)
	require.Equal(t, "opaque-credential", stub.lastCredential)

	var stored dto.RequestGradingDto
	require.NoError(t, json.Unmarshal(stub.lastPayload, &stored))
	require.Equal(t, int64(9001), stored.Submissions[0].ID)
}

func TestGenerateRejectsInvalidBody(t *testing.T) {
	stub := &stubQueue{enqueueID: "task-abc"}
	app := newTestApp(stub)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/grading/generate", bytes.NewReader([]byte(`{`)))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Zero(t, stub.enqueueCalls)
}

func TestGenerateRejectsValidationFailures(t *testing.T) {
	stub := &stubQueue{enqueueID: "task-abc"}
	app := newTestApp(stub)

	// No submissions: rejected before any task exists.
	request := validGradingRequest()
	request.Submissions = nil
	body, err := json.Marshal(request)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/grading/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	require.Zero(t, stub.enqueueCalls)
}

func TestGenerateRejectsDuplicateSubmissionIDs(t *testing.T) {
	stub := &stubQueue{enqueueID: "task-abc"}
	app := newTestApp(stub)

	request := validGradingRequest()
	request.Submissions = append(request.Submissions, request.Submissions[0])
	body, err := json.Marshal(request)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/grading/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	require.Zero(t, stub.enqueueCalls)
}

func TestStatusSuccessPayload(t *testing.T) {
	result := json.RawMessage(`{"9001":{"submission_id":9001,"score":8,"feedback":"Good answer"}}`)
	stub := &stubQueue{statusView: queue.TaskStatusView{
		TaskID: "task-abc",
		Status: models.TaskStatusSuccess,
		Result: result,
	}}
	app := newTestApp(stub)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/grading/status/task-abc", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, data := decodeEnvelope(t, resp.Body)

	var status dto.TaskStatusResponse
	require.NoError(t, json.Unmarshal(data, &status))
	require.Equal(t, "task-abc", status.TaskID)
	require.Equal(t, models.TaskStatusSuccess, status.Status)
	require.JSONEq(t, string(result), string(status.Result))
	require.Nil(t, status.ErrorSummary)
}

func TestStatusFailurePayload(t *testing.T) {
	stub := &stubQueue{statusView: queue.TaskStatusView{
		TaskID:       "task-abc",
		Status:       models.TaskStatusFailure,
		ErrorSummary: "score parse failed: no score pattern in model output",
	}}
	app := newTestApp(stub)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/grading/status/task-abc", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, data := decodeEnvelope(t, resp.Body)

	var status dto.TaskStatusResponse
	require.NoError(t, json.Unmarshal(data, &status))
	require.Equal(t, models.TaskStatusFailure, status.Status)
	require.Nil(t, status.Result)
	require.NotNil(t, status.ErrorSummary)
	require.Equal(t, "score parse failed: no score pattern in model output", *status.ErrorSummary)
}

func TestStatusUnknownTaskIsNotFound(t *testing.T) {
	stub := &stubQueue{statusErr: queue.ErrTaskNotFound}
	app := newTestApp(stub)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/grading/status/no-such-task", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
