package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	generateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "copilot",
		Subsystem: "ai",
		Name:      "generate_duration_seconds",
		Help:      "Duration of model generation requests",
	}, []string{"provider", "model"})

	generateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "copilot",
		Subsystem: "ai",
		Name:      "generate_failures_total",
		Help:      "Number of failed model generation requests",
	}, []string{"provider", "model"})
)

// OllamaConfig defines configuration options for the Ollama generator.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// OllamaGenerator implements Generator against Ollama's line-delimited
// streaming generate endpoint.
type OllamaGenerator struct {
	client *http.Client
	cfg    OllamaConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaChunk is one line of the stream. Absence of the response field is an
// empty fragment, not an error.
type ollamaChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaGenerator builds a new generator using the provided configuration.
func NewOllamaGenerator(cfg OllamaConfig) (*OllamaGenerator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama base url is required")
	}

	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OllamaGenerator{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		tracer: otel.Tracer("github.com/Canvas-Copilot/backend/pkg/ai"),
		logger: logger.With().Str("component", "ollama_generator").Logger(),
	}, nil
}

// Generate streams a completion for the prompt and returns the accumulated
// text. Transport problems and non-success statuses surface as *TransportError;
// a stream whose every line is unparseable surfaces ErrMalformedStream.
func (g *OllamaGenerator) Generate(parent context.Context, prompt string) (string, error) {
	ctx, span := g.tracer.Start(parent, "ollama.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	text, err := g.stream(ctx, prompt)
	generateDuration.WithLabelValues("ollama", g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		generateFailures.WithLabelValues("ollama", g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("response.length", len(text)))
	return text, nil
}

func (g *OllamaGenerator) stream(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{Model: g.cfg.Model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &TransportError{Op: "ollama generate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{Op: "ollama generate", StatusCode: resp.StatusCode}
	}

	var builder strings.Builder
	seen := 0
	parsed := 0

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		seen++
		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			g.logger.Debug().Str("line", string(line)).Msg("skipping malformed stream line")
			continue
		}

		parsed++
		builder.WriteString(chunk.Response)
	}
	if err := scanner.Err(); err != nil {
		return "", &TransportError{Op: "ollama stream", Err: err}
	}

	if seen > 0 && parsed == 0 {
		return "", ErrMalformedStream
	}

	if builder.Len() == 0 {
		return NoFeedbackFallback, nil
	}

	return builder.String(), nil
}
