package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// Reconciler periodically re-derives lost stage jobs from store state.
// Queues carry no acknowledgements, so a worker crash between pop and
// status update loses the in-flight job; the ticket's stale status is the
// only remaining evidence, and the sweep turns it back into a job.
type Reconciler struct {
	tickets    repository.TicketRepository
	queue      queue.Queue
	interval   time.Duration
	stuckAfter time.Duration
	batchSize  int
	logger     *zap.Logger

	// Status to the queue that drives its next transition.
	routes []reconcileRoute
}

type reconcileRoute struct {
	status    domain.TicketStatus
	queueName string
}

// NewReconciler builds the sweep over the three non-terminal statuses.
func NewReconciler(tickets repository.TicketRepository, q queue.Queue, classifyQueue, ragQueue, assignmentQueue string, interval, stuckAfter time.Duration, batchSize int, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if stuckAfter <= 0 {
		stuckAfter = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Reconciler{
		tickets:    tickets,
		queue:      q,
		interval:   interval,
		stuckAfter: stuckAfter,
		batchSize:  batchSize,
		logger:     logger.With(zap.String("worker", "reconciler")),
		routes: []reconcileRoute{
			{status: domain.TicketStatusNew, queueName: classifyQueue},
			{status: domain.TicketStatusClassified, queueName: ragQueue},
			{status: domain.TicketStatusEnriched, queueName: assignmentQueue},
		},
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconciler started",
		zap.Duration("interval", r.interval),
		zap.Duration("stuck_after", r.stuckAfter))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over all routes. Re-enqueueing a ticket whose job is
// merely slow produces a duplicate job; stages tolerate that by skipping
// work that is already recorded.
func (r *Reconciler) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.stuckAfter)
	for _, route := range r.routes {
		ids, err := r.tickets.ListStuckInStatus(ctx, route.status, cutoff, r.batchSize)
		if err != nil {
			r.logger.Error("reconcile scan failed",
				zap.String("status", string(route.status)),
				zap.Error(err))
			continue
		}
		for _, id := range ids {
			job := domain.Job{TicketID: id, Reason: domain.JobReasonReconcile}
			if err := queue.PushJob(ctx, r.queue, route.queueName, job); err != nil {
				r.logger.Error("reconcile enqueue failed",
					zap.String("ticket_id", id),
					zap.String("queue", route.queueName),
					zap.Error(err))
				continue
			}
			r.logger.Info("re-enqueued stuck ticket",
				zap.String("ticket_id", id),
				zap.String("status", string(route.status)),
				zap.String("queue", route.queueName))
		}
	}
}
