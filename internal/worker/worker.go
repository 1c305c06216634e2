package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Canvas-Copilot/backend/internal/dto"
	"github.com/Canvas-Copilot/backend/internal/models"
	"github.com/Canvas-Copilot/backend/internal/queue"
	"github.com/Canvas-Copilot/backend/internal/service"
	"github.com/Canvas-Copilot/backend/pkg/ai"
)

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "copilot",
		Subsystem: "worker",
		Name:      "tasks_total",
		Help:      "Grading task attempts by outcome",
	}, []string{"outcome"})

	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "copilot",
		Subsystem: "worker",
		Name:      "task_duration_seconds",
		Help:      "Duration of grading task attempts",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
)

// Config tunes the worker loops.
type Config struct {
	Concurrency     int
	MaxAttempts     int
	RetryDelay      time.Duration
	PollInterval    time.Duration
	JanitorInterval time.Duration
}

// Worker claims grading tasks from the queue, runs the feedback assembler,
// and reports the terminal state back. Transient model failures are retried
// with a fixed delay up to MaxAttempts; terminal failures fail the task on
// the first attempt.
type Worker struct {
	queue     queue.TaskQueue
	assembler service.FeedbackService
	events    *service.TaskEventPublisher
	cfg       Config
	logger    zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New constructs a worker over the queue and assembler.
func New(q queue.TaskQueue, assembler service.FeedbackService, events *service.TaskEventPublisher, cfg Config, logger zerolog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = 15 * time.Second
	}

	return &Worker{
		queue:     q,
		assembler: assembler,
		events:    events,
		cfg:       cfg,
		logger:    logger.With().Str("component", "worker").Logger(),
	}
}

// Start launches the claim loops and the janitor. Cancelling ctx, or calling
// Stop, stops claiming; tasks already in flight run to completion.
func (w *Worker) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.claimLoop(loopCtx)
	}

	w.wg.Add(1)
	go w.janitor(loopCtx)

	w.logger.Info().Int("concurrency", w.cfg.Concurrency).Msg("worker started")
}

// Stop drains in-flight tasks and waits for all loops to exit.
func (w *Worker) Stop() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		w.logger.Info().Msg("worker stopped")
	})
}

func (w *Worker) claimLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Msg("claim failed")
			w.sleep(ctx, w.cfg.PollInterval)
			continue
		}

		if task == nil {
			w.sleep(ctx, w.cfg.PollInterval)
			continue
		}

		// Shutdown must not abort a claimed task mid-grade; the model
		// timeout bounds how long the drain can take.
		w.process(context.WithoutCancel(ctx), task)
	}
}

func (w *Worker) janitor(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.queue.PromoteDue(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("failed to promote delayed tasks")
			}
			if _, err := w.queue.ReapExpired(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("failed to reap expired leases")
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, task *queue.ClaimedTask) {
	logger := w.logger.With().Str("task_id", task.ID).Int("attempt", task.Attempts).Logger()
	start := time.Now()
	defer func() {
		taskDuration.Observe(time.Since(start).Seconds())
	}()

	var request dto.RequestGradingDto
	if err := json.Unmarshal(task.Payload, &request); err != nil {
		logger.Error().Err(err).Msg("malformed task payload")
		w.fail(ctx, logger, task.ID, fmt.Sprintf("malformed request payload: %v", err))
		return
	}

	result, err := w.assembler.Generate(ctx, request)
	if err != nil {
		if ai.IsTransport(err) && task.Attempts < w.cfg.MaxAttempts {
			logger.Warn().Err(err).Dur("retry_delay", w.cfg.RetryDelay).Msg("transient failure, scheduling retry")
			if retryErr := w.queue.Retry(ctx, task.ID, err.Error(), w.cfg.RetryDelay); retryErr != nil {
				logger.Error().Err(retryErr).Msg("failed to schedule retry")
				return
			}
			tasksTotal.WithLabelValues("retry").Inc()
			w.events.Publish(task.ID, models.TaskStatusPending, err.Error())
			return
		}

		logger.Error().Err(err).Msg("grading failed")
		w.fail(ctx, logger, task.ID, err.Error())
		return
	}

	blob, err := json.Marshal(result)
	if err != nil {
		w.fail(ctx, logger, task.ID, fmt.Sprintf("marshal result: %v", err))
		return
	}

	if err := w.queue.ReportSuccess(ctx, task.ID, blob); err != nil {
		logger.Error().Err(err).Msg("failed to report success")
		return
	}

	tasksTotal.WithLabelValues("success").Inc()
	w.events.Publish(task.ID, models.TaskStatusSuccess, "")
	logger.Info().Int("submissions", len(result)).Msg("task succeeded")
}

func (w *Worker) fail(ctx context.Context, logger zerolog.Logger, taskID, summary string) {
	if err := w.queue.ReportFailure(ctx, taskID, summary); err != nil {
		logger.Error().Err(err).Msg("failed to report failure")
		return
	}

	tasksTotal.WithLabelValues("failure").Inc()
	w.events.Publish(taskID, models.TaskStatusFailure, summary)
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
