package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orquesta-sinfonica/rotativos-api/pkg/jobs"
)

// Notifier is the service-facing facade: each call enqueues an asynchronous
// dispatch task, so callers never wait on the broker.
type Notifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotifier wires the publisher behind a background job queue.
func NewNotifier(publisher *Publisher, cfg jobs.QueueConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, task jobs.Task) error {
		event, ok := task.Payload.(Event)
		if !ok {
			logger.Warn("dropping task with unexpected payload", zap.String("task_id", task.ID))
			return nil
		}
		return publisher.Publish(ctx, event)
	}
	cfg.Logger = logger
	return &Notifier{queue: jobs.NewQueue("notifications", handler, cfg), logger: logger}
}

// Start launches the dispatch workers.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (n *Notifier) Stop() {
	n.queue.Stop()
}

// RotationApproved notifies the member their rotation was approved.
func (n *Notifier) RotationApproved(userID, eventID string) {
	n.enqueue(Event{Kind: KindRotationApproved, UserID: userID, EventID: eventID})
}

// RotationRejected notifies the member their rotation was rejected.
func (n *Notifier) RotationRejected(userID, eventID string) {
	n.enqueue(Event{Kind: KindRotationRejected, UserID: userID, EventID: eventID})
}

// WaitlistPromoted notifies the member their queued request got a slot.
func (n *Notifier) WaitlistPromoted(userID, eventID string) {
	n.enqueue(Event{Kind: KindWaitlistPromoted, UserID: userID, EventID: eventID})
}

// BlockCancelled notifies the member their block was cancelled.
func (n *Notifier) BlockCancelled(userID, blockID string) {
	n.enqueue(Event{Kind: KindBlockCancelled, UserID: userID, BlockID: blockID})
}

func (n *Notifier) enqueue(event Event) {
	event.OccurredAt = time.Now().UTC()
	task := jobs.Task{ID: uuid.NewString(), Kind: event.Kind, Payload: event}
	if err := n.queue.Enqueue(task); err != nil {
		n.logger.Warn("failed to enqueue notification", zap.String("kind", event.Kind), zap.Error(err))
	}
}
