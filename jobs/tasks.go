package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quoteflow/quoteflow/internal/quotes"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuoteSubmitted notifies the sales team about a submitted quote.
	TaskQuoteSubmitted = "quote:submitted"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewQuoteSubmittedTask constructs an Asynq task for a submitted quote.
// The task id is the quote id so repeated submits enqueue at most once.
func NewQuoteSubmittedTask(ev quotes.SubmittedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteSubmitted, data,
		asynq.TaskID("quote-submitted-"+ev.QuoteID.String()),
		asynq.MaxRetry(5),
		asynq.Queue(QueueDefault),
	), nil
}

// NewIdempotencyCleanupTask constructs the periodic key purge.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	if olderThan <= 0 {
		return nil, fmt.Errorf("jobs: retention must be positive, got %s", olderThan)
	}
	data, err := json.Marshal(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}

// Enqueuer is the subset of asynq.Client used to publish tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QuoteNotifier publishes submitted quotes onto the job queue.
type QuoteNotifier struct {
	queue Enqueuer
}

// NewQuoteNotifier wires a notifier to an asynq client.
func NewQuoteNotifier(queue Enqueuer) *QuoteNotifier {
	return &QuoteNotifier{queue: queue}
}

// QuoteSubmitted enqueues the notification task.
func (n *QuoteNotifier) QuoteSubmitted(ctx context.Context, ev quotes.SubmittedEvent) error {
	if n == nil || n.queue == nil {
		return nil
	}
	task, err := NewQuoteSubmittedTask(ev)
	if err != nil {
		return err
	}
	if _, err := n.queue.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("jobs: enqueue %s: %w", TaskQuoteSubmitted, err)
	}
	return nil
}
