package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/metrics"
)

// QueueNotifier implements Notifier by enqueueing typed tasks on a
// Redis-backed queue. A separate worker process consumes and delivers them.
type QueueNotifier struct {
	client     *asynq.Client
	queue      string
	maxRetries int
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewQueueNotifier creates a notifier backed by the given Redis connection.
// Metrics may be nil.
func NewQueueNotifier(redisOpt asynq.RedisClientOpt, queue string, maxRetries int, m *metrics.Metrics, logger zerolog.Logger) *QueueNotifier {
	if queue == "" {
		queue = "notifications"
	}
	return &QueueNotifier{
		client:     asynq.NewClient(redisOpt),
		queue:      queue,
		maxRetries: maxRetries,
		metrics:    m,
		logger:     logger.With().Str("component", "notifier").Logger(),
	}
}

// Close closes the underlying queue client.
func (n *QueueNotifier) Close() error {
	return n.client.Close()
}

var _ Notifier = (*QueueNotifier)(nil)

func (n *QueueNotifier) Welcome(ctx context.Context, email, name string) error {
	return n.enqueue(ctx, TypeWelcome, WelcomePayload{Email: email, Name: name})
}

func (n *QueueNotifier) PasswordReset(ctx context.Context, email, name, resetToken string) error {
	return n.enqueue(ctx, TypePasswordReset, PasswordResetPayload{
		Email:      email,
		Name:       name,
		ResetToken: resetToken,
	})
}

func (n *QueueNotifier) ProjectAssigned(ctx context.Context, email, name, projectName string, endDate time.Time) error {
	return n.enqueue(ctx, TypeProjectAssigned, ProjectAssignedPayload{
		Email:       email,
		Name:        name,
		ProjectName: projectName,
		EndDate:     endDate,
	})
}

func (n *QueueNotifier) ProjectCompleted(ctx context.Context, email, name, projectName string) error {
	return n.enqueue(ctx, TypeProjectCompleted, ProjectCompletedPayload{
		Email:       email,
		Name:        name,
		ProjectName: projectName,
	})
}

func (n *QueueNotifier) ProjectOverdue(ctx context.Context, email, name, projectName string, endDate time.Time) error {
	return n.enqueue(ctx, TypeProjectOverdue, ProjectOverduePayload{
		Email:       email,
		Name:        name,
		ProjectName: projectName,
		EndDate:     endDate,
	})
}

func (n *QueueNotifier) enqueue(ctx context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}

	task := asynq.NewTask(taskType, data)
	info, err := n.client.EnqueueContext(ctx, task,
		asynq.Queue(n.queue),
		asynq.MaxRetry(n.maxRetries),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}

	if n.metrics != nil {
		n.metrics.RecordNotificationEnqueued(taskType)
	}
	n.logger.Debug().Str("task", taskType).Str("task_id", info.ID).Msg("notification enqueued")
	return nil
}
