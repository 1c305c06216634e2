package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Canvas-Copilot/backend/internal/dto"
	"github.com/Canvas-Copilot/backend/internal/models"
	"github.com/Canvas-Copilot/backend/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeGenerator struct {
	prompts []string
	fn      func(prompt string) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.fn(prompt)
}

func gradingRequest(submissions ...models.Submission) dto.RequestGradingDto {
	return dto.RequestGradingDto{
		Course: models.Course{
			ID:   101,
			Name: "Biology 101",
		},
		Assignment: models.Assignment{
			ID:             555,
			Name:           "Cell Structure Essay",
			Description:    "<p>Explain the structure of the cell.</p>",
			CourseID:       101,
			PointsPossible: 10.0,
			GradingType:    models.GradingTypePoints,
		},
		Submissions: submissions,
	}
}

func TestFeedbackServiceSingleSubmission(t *testing.T) {
	const raw = "<FEEDBACK>Good answer<FEEDBACK><SCORE>8/10</SCORE>"

	generator := &fakeGenerator{fn: func(string) (string, error) { return raw, nil }}
	svc := NewFeedbackService(generator, testLogger())

	request := gradingRequest(models.Submission{
		ID:            9001,
		Body:          "The mitochondria is the powerhouse of the cell.",
		WorkflowState: models.WorkflowStateSubmitted,
	})

	result, err := svc.Generate(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, dto.GradingFeedback{
		SubmissionID: 9001,
		Score:        8.0,
		Feedback:     raw,
	}, result[9001])
}

func TestFeedbackServiceCompleteness(t *testing.T) {
	generator := &fakeGenerator{fn: func(string) (string, error) {
		return "<FEEDBACK>Fine<FEEDBACK><SCORE>6/10</SCORE>", nil
	}}
	svc := NewFeedbackService(generator, testLogger())

	submissions := []models.Submission{
		{ID: 1, Body: "first", WorkflowState: models.WorkflowStateSubmitted},
		{ID: 2, Body: "second", WorkflowState: models.WorkflowStateSubmitted},
		{ID: 3, Body: "third", WorkflowState: models.WorkflowStateSubmitted},
	}

	result, err := svc.Generate(context.Background(), gradingRequest(submissions...))
	require.NoError(t, err)
	require.Len(t, result, len(submissions))
	for _, submission := range submissions {
		entry, ok := result[submission.ID]
		require.True(t, ok, "missing entry for submission %d", submission.ID)
		require.Equal(t, submission.ID, entry.SubmissionID)
	}
	require.Len(t, generator.prompts, len(submissions))
}

func TestFeedbackServiceNoPartialResults(t *testing.T) {
	calls := 0
	generator := &fakeGenerator{fn: func(string) (string, error) {
		calls++
		if calls == 2 {
			return "I refuse to use the requested format.", nil
		}
		return "<FEEDBACK>ok<FEEDBACK><SCORE>5/10</SCORE>", nil
	}}
	svc := NewFeedbackService(generator, testLogger())

	result, err := svc.Generate(context.Background(), gradingRequest(
		models.Submission{ID: 1, Body: "a", WorkflowState: models.WorkflowStateSubmitted},
		models.Submission{ID: 2, Body: "b", WorkflowState: models.WorkflowStateSubmitted},
		models.Submission{ID: 3, Body: "c", WorkflowState: models.WorkflowStateSubmitted},
	))
	require.Error(t, err)
	require.Nil(t, result)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	// Grading stops at the failing submission.
	require.Equal(t, 2, calls)
}

func TestFeedbackServiceTransportErrorPropagates(t *testing.T) {
	generator := &fakeGenerator{fn: func(string) (string, error) {
		return "", &ai.TransportError{Op: "ollama generate", Err: fmt.Errorf("connection refused")}
	}}
	svc := NewFeedbackService(generator, testLogger())

	result, err := svc.Generate(context.Background(), gradingRequest(
		models.Submission{ID: 1, Body: "a", WorkflowState: models.WorkflowStateSubmitted},
	))
	require.Error(t, err)
	require.Nil(t, result)
	require.True(t, ai.IsTransport(err))
}

func TestFeedbackServicePromptContents(t *testing.T) {
	generator := &fakeGenerator{fn: func(string) (string, error) {
		return "<FEEDBACK>ok<FEEDBACK><SCORE>5/10</SCORE>", nil
	}}
	svc := NewFeedbackService(generator, testLogger())

	request := gradingRequest(models.Submission{
		ID:            7,
		Body:          "<p>Hello <b>World</b></p>",
		WorkflowState: models.WorkflowStateSubmitted,
		Late:          true,
	})
	request.GradingSettings = &models.GradingSettings{Strictness: models.StrictnessStrict}

	_, err := svc.Generate(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, generator.prompts, 1)

	prompt := generator.prompts[0]
	require.Contains(t, prompt, "'Cell Structure Essay'")
	require.Contains(t, prompt, "Hello World")
	require.NotContains(t, prompt, "<p>")
	require.Contains(t, prompt, "Explain the structure of the cell.")
	require.Contains(t, prompt, "/10.00")
	require.Contains(t, prompt, "Apply strict grading standards.")
	require.Contains(t, prompt, "turned in late")
}

func TestFeedbackServiceCustomPromptOverridesToneAndLength(t *testing.T) {
	generator := &fakeGenerator{fn: func(string) (string, error) {
		return "<FEEDBACK>ok<FEEDBACK><SCORE>5/10</SCORE>", nil
	}}
	svc := NewFeedbackService(generator, testLogger())

	request := gradingRequest(models.Submission{ID: 7, Body: "x", WorkflowState: models.WorkflowStateSubmitted})
	request.FeedbackSettings = &models.FeedbackSettings{
		Tone:                 models.ToneFriendly,
		CustomFeedbackPrompt: "Address the student as 'future scientist'.",
	}

	_, err := svc.Generate(context.Background(), request)
	require.NoError(t, err)

	prompt := generator.prompts[0]
	require.Contains(t, prompt, "future scientist")
	require.NotContains(t, prompt, "friendly tone")
}

func TestFeedbackServiceDefaultToneAndLength(t *testing.T) {
	generator := &fakeGenerator{fn: func(string) (string, error) {
		return "<FEEDBACK>ok<FEEDBACK><SCORE>5/10</SCORE>", nil
	}}
	svc := NewFeedbackService(generator, testLogger())

	_, err := svc.Generate(context.Background(), gradingRequest(
		models.Submission{ID: 7, Body: "x", WorkflowState: models.WorkflowStateSubmitted},
	))
	require.NoError(t, err)

	prompt := generator.prompts[0]
	require.Contains(t, prompt, "constructive tone")
	require.Contains(t, prompt, "of medium length")
	require.Contains(t, prompt, "Apply moderate grading standards.")
}
