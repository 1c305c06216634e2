package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Canvas-Copilot/backend/internal/models"
)

// claimScript pops the oldest pending task and transitions it to RUNNING in a
// single atomic step. The atomicity is what makes a claim conflict between two
// workers structurally impossible.
var claimScript = redis.NewScript(`
local id = redis.call('RPOP', KEYS[1])
if not id then
  return false
end
local task = KEYS[2] .. id
local status = redis.call('HGET', task, 'status')
if status ~= 'PENDING' then
  return false
end
redis.call('HSET', task, 'status', 'RUNNING', 'updated_at', ARGV[1])
local attempts = redis.call('HINCRBY', task, 'attempts', 1)
redis.call('ZADD', KEYS[3], ARGV[2], id)
return {id, redis.call('HGET', task, 'payload'), redis.call('HGET', task, 'credential'), attempts}
`)

// reportScript finalizes a RUNNING task. ARGV[1] selects the terminal status,
// ARGV[2] the field the payload lands in.
var reportScript = redis.NewScript(`
local task = KEYS[1]
if redis.call('EXISTS', task) == 0 then
  return 'NOTFOUND'
end
local status = redis.call('HGET', task, 'status')
if status ~= 'RUNNING' then
  return status
end
redis.call('HSET', task, 'status', ARGV[1], ARGV[2], ARGV[3], 'updated_at', ARGV[4])
redis.call('ZREM', KEYS[2], ARGV[5])
return 'OK'
`)

// retryScript releases a RUNNING task back to PENDING via the delayed set.
var retryScript = redis.NewScript(`
local task = KEYS[1]
if redis.call('EXISTS', task) == 0 then
  return 'NOTFOUND'
end
local status = redis.call('HGET', task, 'status')
if status ~= 'RUNNING' then
  return status
end
redis.call('HSET', task, 'status', 'PENDING', 'error', ARGV[1], 'updated_at', ARGV[2])
redis.call('ZREM', KEYS[2], ARGV[3])
redis.call('ZADD', KEYS[3], ARGV[4], ARGV[3])
return 'OK'
`)

// promoteScript moves retries whose backoff elapsed back onto the pending list.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('LPUSH', KEYS[2], id)
end
return #due
`)

// reapScript requeues RUNNING tasks whose lease expired, so a worker crash
// mid-task never leaves the task stuck in RUNNING.
var reapScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local revived = 0
for _, id in ipairs(expired) do
  redis.call('ZREM', KEYS[1], id)
  local task = KEYS[3] .. id
  if redis.call('HGET', task, 'status') == 'RUNNING' then
    redis.call('HSET', task, 'status', 'PENDING', 'updated_at', ARGV[2])
    redis.call('LPUSH', KEYS[2], id)
    revived = revived + 1
  end
end
return revived
`)

// RedisQueueConfig tunes the redis-backed queue.
type RedisQueueConfig struct {
	Namespace    string
	LeaseTimeout time.Duration
}

// RedisTaskQueue implements TaskQueue on top of redis: a per-task hash for
// state, a list for pending work, and sorted sets for delayed retries and
// claim leases.
type RedisTaskQueue struct {
	client *redis.Client
	cfg    RedisQueueConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewRedisTaskQueue constructs the queue around an existing redis client. The
// caller keeps ownership of the client lifecycle.
func NewRedisTaskQueue(client *redis.Client, cfg RedisQueueConfig, logger zerolog.Logger) *RedisTaskQueue {
	if cfg.Namespace == "" {
		cfg.Namespace = "copilot:grading"
	}

	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 10 * time.Minute
	}

	return &RedisTaskQueue{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "task_queue").Logger(),
		now:    time.Now,
	}
}

func (q *RedisTaskQueue) pendingKey() string { return q.cfg.Namespace + ":pending" }
func (q *RedisTaskQueue) delayedKey() string { return q.cfg.Namespace + ":delayed" }
func (q *RedisTaskQueue) leasesKey() string  { return q.cfg.Namespace + ":leases" }
func (q *RedisTaskQueue) taskPrefix() string { return q.cfg.Namespace + ":task:" }

func (q *RedisTaskQueue) taskKey(id string) string { return q.taskPrefix() + id }

// Enqueue stores the serialized request durably and makes it visible to
// workers immediately. It returns the generated task id without waiting for a
// worker.
func (q *RedisTaskQueue) Enqueue(ctx context.Context, credential string, payload []byte) (string, error) {
	id := uuid.NewString()
	now := strconv.FormatInt(q.now().Unix(), 10)

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.taskKey(id),
		"status", string(models.TaskStatusPending),
		"credential", credential,
		"payload", payload,
		"attempts", "0",
		"enqueued_at", now,
		"updated_at", now,
	)
	pipe.LPush(ctx, q.pendingKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}

	q.logger.Info().Str("task_id", id).Msg("task enqueued")
	return id, nil
}

// Claim takes ownership of the oldest pending task, or returns nil when the
// queue is empty.
func (q *RedisTaskQueue) Claim(ctx context.Context) (*ClaimedTask, error) {
	now := q.now()
	leaseDeadline := now.Add(q.cfg.LeaseTimeout).Unix()

	result, err := claimScript.Run(ctx, q.client,
		[]string{q.pendingKey(), q.taskPrefix(), q.leasesKey()},
		now.Unix(), leaseDeadline,
	).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}

	fields, ok := result.([]interface{})
	if !ok || len(fields) != 4 {
		return nil, fmt.Errorf("claim task: unexpected script reply %T", result)
	}

	task := &ClaimedTask{
		ID:         toString(fields[0]),
		Payload:    []byte(toString(fields[1])),
		Credential: toString(fields[2]),
	}
	if attempts, ok := fields[3].(int64); ok {
		task.Attempts = int(attempts)
	}

	q.logger.Debug().Str("task_id", task.ID).Int("attempt", task.Attempts).Msg("task claimed")
	return task, nil
}

// ReportSuccess transitions RUNNING -> SUCCESS and stores the result blob.
func (q *RedisTaskQueue) ReportSuccess(ctx context.Context, taskID string, result []byte) error {
	return q.report(ctx, taskID, models.TaskStatusSuccess, "result", string(result))
}

// ReportFailure transitions RUNNING -> FAILURE and stores the error summary.
func (q *RedisTaskQueue) ReportFailure(ctx context.Context, taskID string, summary string) error {
	return q.report(ctx, taskID, models.TaskStatusFailure, "error", summary)
}

func (q *RedisTaskQueue) report(ctx context.Context, taskID string, status models.TaskStatus, field, value string) error {
	reply, err := reportScript.Run(ctx, q.client,
		[]string{q.taskKey(taskID), q.leasesKey()},
		string(status), field, value, q.now().Unix(), taskID,
	).Text()
	if err != nil {
		return fmt.Errorf("report %s: %w", status, err)
	}

	return q.checkTransitionReply(taskID, reply, status)
}

// Retry returns a RUNNING task to PENDING, recording the error summary of the
// failed attempt and deferring re-claim eligibility by delay.
func (q *RedisTaskQueue) Retry(ctx context.Context, taskID string, summary string, delay time.Duration) error {
	readyAt := q.now().Add(delay).Unix()
	reply, err := retryScript.Run(ctx, q.client,
		[]string{q.taskKey(taskID), q.leasesKey(), q.delayedKey()},
		summary, q.now().Unix(), taskID, readyAt,
	).Text()
	if err != nil {
		return fmt.Errorf("retry task: %w", err)
	}

	return q.checkTransitionReply(taskID, reply, models.TaskStatusPending)
}

func (q *RedisTaskQueue) checkTransitionReply(taskID, reply string, target models.TaskStatus) error {
	switch reply {
	case "OK":
		return nil
	case "NOTFOUND":
		return fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	default:
		return fmt.Errorf("task %s: %s -> %s: %w", taskID, reply, target, ErrIllegalTransition)
	}
}

// Status returns the current snapshot of the task. Re-reading a terminal task
// always yields the same view.
func (q *RedisTaskQueue) Status(ctx context.Context, taskID string) (TaskStatusView, error) {
	fields, err := q.client.HGetAll(ctx, q.taskKey(taskID)).Result()
	if err != nil {
		return TaskStatusView{}, fmt.Errorf("read task status: %w", err)
	}

	if len(fields) == 0 {
		return TaskStatusView{}, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}

	view := TaskStatusView{
		TaskID: taskID,
		Status: models.TaskStatus(fields["status"]),
	}

	switch view.Status {
	case models.TaskStatusSuccess:
		view.Result = json.RawMessage(fields["result"])
	case models.TaskStatusFailure:
		view.ErrorSummary = fields["error"]
	}

	return view, nil
}

// PromoteDue moves delayed retries whose backoff elapsed onto the pending
// list. Returns the number of promoted tasks.
func (q *RedisTaskQueue) PromoteDue(ctx context.Context) (int, error) {
	promoted, err := promoteScript.Run(ctx, q.client,
		[]string{q.delayedKey(), q.pendingKey()},
		q.now().Unix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promote delayed tasks: %w", err)
	}

	if promoted > 0 {
		q.logger.Debug().Int("count", promoted).Msg("promoted delayed tasks")
	}
	return promoted, nil
}

// ReapExpired requeues RUNNING tasks whose lease expired without a report,
// which happens when the owning worker crashed mid-task.
func (q *RedisTaskQueue) ReapExpired(ctx context.Context) (int, error) {
	revived, err := reapScript.Run(ctx, q.client,
		[]string{q.leasesKey(), q.pendingKey(), q.taskPrefix()},
		q.now().Unix(), q.now().Unix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("reap expired leases: %w", err)
	}

	if revived > 0 {
		q.logger.Warn().Int("count", revived).Msg("requeued tasks with expired leases")
	}
	return revived, nil
}

func toString(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case []byte:
		return string(value)
	default:
		return fmt.Sprint(value)
	}
}
