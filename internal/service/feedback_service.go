package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Canvas-Copilot/backend/internal/dto"
	"github.com/Canvas-Copilot/backend/internal/models"
	"github.com/Canvas-Copilot/backend/pkg/ai"
)

// FeedbackService grades every submission of a request against the model and
// assembles the per-submission result map. An attempt is atomic: the first
// irrecoverable submission failure aborts the whole task and no partial
// results are surfaced.
type FeedbackService interface {
	Generate(ctx context.Context, request dto.RequestGradingDto) (dto.GradingFeedbackResponse, error)
}

type feedbackService struct {
	generator ai.Generator
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewFeedbackService builds the grading assembler around a model generator.
func NewFeedbackService(generator ai.Generator, logger zerolog.Logger) FeedbackService {
	return &feedbackService{
		generator: generator,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "feedback_service").Logger(),
		tracer:    otel.Tracer("github.com/Canvas-Copilot/backend/internal/service"),
	}
}

func (s *feedbackService) Generate(parent context.Context, request dto.RequestGradingDto) (dto.GradingFeedbackResponse, error) {
	ctx, span := s.tracer.Start(parent, "grading.generate", trace.WithAttributes(
		attribute.Int64("grading.course_id", request.Course.ID),
		attribute.Int64("grading.assignment_id", request.Assignment.ID),
		attribute.Int("grading.submission_count", len(request.Submissions)),
	))
	defer span.End()

	criteria := s.stripMarkup(request.Assignment.Description)
	response := make(dto.GradingFeedbackResponse, len(request.Submissions))

	for _, submission := range request.Submissions {
		prompt := s.buildPrompt(request, submission, criteria)

		raw, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model_call_failed")
			return nil, fmt.Errorf("submission %d: %w", submission.ID, err)
		}

		score, err := ParseScore(raw, request.Assignment.PointsPossible)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "score_parse_failed")
			return nil, fmt.Errorf("submission %d: %w", submission.ID, err)
		}

		s.logger.Debug().
			Int64("submission_id", submission.ID).
			Float64("score", score).
			Msg("submission graded")

		response[submission.ID] = dto.GradingFeedback{
			SubmissionID: submission.ID,
			Score:        score,
			Feedback:     raw,
		}
	}

	return response, nil
}

// stripMarkup reduces Canvas HTML to plain text before it enters a prompt.
func (s *feedbackService) stripMarkup(input string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(input)))
}

func (s *feedbackService) buildPrompt(request dto.RequestGradingDto, submission models.Submission, criteria string) string {
	body := s.stripMarkup(submission.Body)

	var b strings.Builder
	fmt.Fprintf(&b, "<Assignment> <name>'%s'</name><content>%s</content></Assignment> ", request.Assignment.Name, body)
	b.WriteString("Give a feedback and a clear score for this assignment,")
	fmt.Fprintf(&b, "based on this criteria: %s.", criteria)
	fmt.Fprintf(&b,
		"You should respond using XML tag like this:'<FEEDBACK>your feedback here<FEEDBACK><SCORE>your score (use format like 'score'/%.2f(which is the full score here)) here</SCORE>' ",
		request.Assignment.PointsPossible,
	)

	fmt.Fprintf(&b, "Apply %s grading standards.", request.GradingSettings.EffectiveStrictness())

	if custom := customFeedbackPrompt(request.FeedbackSettings); custom != "" {
		b.WriteString(" ")
		b.WriteString(custom)
	} else {
		fmt.Fprintf(&b, " Write the feedback in a %s tone and keep it %s.",
			request.FeedbackSettings.EffectiveTone(),
			lengthPhrase(request.FeedbackSettings.EffectiveLength()),
		)
	}

	if submission.Late {
		b.WriteString(" Note: this submission was turned in late.")
	}
	if submission.Missing {
		b.WriteString(" Note: this submission was marked missing.")
	}

	return b.String()
}

func customFeedbackPrompt(settings *models.FeedbackSettings) string {
	if settings == nil {
		return ""
	}
	return strings.TrimSpace(settings.CustomFeedbackPrompt)
}

func lengthPhrase(length models.FeedbackLength) string {
	switch length {
	case models.LengthShort:
		return "short"
	case models.LengthDetailed:
		return "detailed"
	default:
		return "of medium length"
	}
}
