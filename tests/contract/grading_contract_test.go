package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/Canvas-Copilot/backend/internal/dto"
	"github.com/Canvas-Copilot/backend/internal/handler"
	"github.com/Canvas-Copilot/backend/internal/models"
	"github.com/Canvas-Copilot/backend/internal/queue"
	"github.com/Canvas-Copilot/backend/internal/service"
)

type stubTaskQueue struct {
	view queue.TaskStatusView
}

func (s stubTaskQueue) Enqueue(context.Context, string, []byte) (string, error) {
	return "3f1c9af2-0d54-4f06-a6e8-2f9c1f2b8f10", nil
}
func (s stubTaskQueue) Claim(context.Context) (*queue.ClaimedTask, error)   { return nil, nil }
func (s stubTaskQueue) ReportSuccess(context.Context, string, []byte) error { return nil }
func (s stubTaskQueue) ReportFailure(context.Context, string, string) error { return nil }
func (s stubTaskQueue) Retry(context.Context, string, string, time.Duration) error {
	return nil
}
func (s stubTaskQueue) Status(context.Context, string) (queue.TaskStatusView, error) {
	return s.view, nil
}
func (s stubTaskQueue) PromoteDue(context.Context) (int, error)  { return 0, nil }
func (s stubTaskQueue) ReapExpired(context.Context) (int, error) { return 0, nil }

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()

	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func newGradingApp(q queue.TaskQueue) *fiber.App {
	validate := validator.New(validator.WithRequiredStructEnabled())
	events := service.NewTaskEventPublisher(nil, zerolog.Nop())
	h := handler.NewGradingHandler(q, events, validate, zerolog.Nop())

	app := fiber.New()
	h.Register(app.Group("/api/v1/grading"))
	return app
}

func TestEnqueueContract(t *testing.T) {
	schema := compileSchema(t, "enqueue.schema.json")
	app := newGradingApp(stubTaskQueue{})

	request := dto.RequestGradingDto{
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
	body, err := json.Marshal(request)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/grading/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer opaque-credential")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestTaskStatusContract(t *testing.T) {
	schema := compileSchema(t, "task_status.schema.json")

	views := map[string]queue.TaskStatusView{
		"pending": {
			TaskID: "3f1c9af2-0d54-4f06-a6e8-2f9c1f2b8f10",
			Status: models.TaskStatusPending,
		},
		"success": {
			TaskID: "3f1c9af2-0d54-4f06-a6e8-2f9c1f2b8f10",
			Status: models.TaskStatusSuccess,
			Result: json.RawMessage(`{"9001":{"submission_id":9001,"score":8,"feedback":"Accurate and well structured."}}`),
		},
		"failure": {
			TaskID:       "3f1c9af2-0d54-4f06-a6e8-2f9c1f2b8f10",
			Status:       models.TaskStatusFailure,
			ErrorSummary: "score parse failed: no score pattern in model output",
		},
	}

	for name, view := range views {
		t.Run(name, func(t *testing.T) {
			app := newGradingApp(stubTaskQueue{view: view})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/grading/status/"+view.TaskID, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			defer resp.Body.Close()
			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			var payload interface{}
			require.NoError(t, json.Unmarshal(raw, &payload))
			require.NoError(t, schema.Validate(payload))
		})
	}
}
