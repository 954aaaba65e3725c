// Package worker runs the pipeline's long-lived loops: one queue-consuming
// Runner per stage and a periodic Reconciler that re-derives lost work from
// store state.
package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/queue"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// Handler processes one raw queue payload.
type Handler func(ctx context.Context, payload []byte) error

// JobHandler adapts a stage's typed job processor into a Handler.
func JobHandler(process func(ctx context.Context, job domain.Job) error) Handler {
	return func(ctx context.Context, payload []byte) error {
		job, err := queue.DecodeJob(payload)
		if err != nil {
			return apperrors.NewValidationError("malformed job payload", map[string]any{"error": err.Error()})
		}
		if job.TicketID == "" {
			return apperrors.NewValidationError("job missing ticket_id", nil)
		}
		return process(ctx, job)
	}
}

// Runner is a single-goroutine blocking worker loop: pop with timeout,
// process synchronously, loop. Per-job errors are caught here so one bad
// job never crashes the loop; only context cancellation exits it.
type Runner struct {
	name         string
	queueName    string
	queue        queue.Queue
	handler      Handler
	popTimeout   time.Duration
	storeBackoff time.Duration
	logger       *zap.Logger
}

// NewRunner constructs a worker loop for one stage.
func NewRunner(name, queueName string, q queue.Queue, handler Handler, popTimeout, storeBackoff time.Duration, logger *zap.Logger) *Runner {
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	if storeBackoff <= 0 {
		storeBackoff = 5 * time.Second
	}
	return &Runner{
		name:         name,
		queueName:    queueName,
		queue:        q,
		handler:      handler,
		popTimeout:   popTimeout,
		storeBackoff: storeBackoff,
		logger:       logger.With(zap.String("worker", name), zap.String("queue", queueName)),
	}
}

// Run consumes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("worker started")
	for {
		if ctx.Err() != nil {
			r.logger.Info("worker stopped")
			return
		}

		payload, ok, err := r.queue.PopBlocking(ctx, r.queueName, r.popTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				r.logger.Info("worker stopped")
				return
			}
			r.logger.Error("queue pop failed", zap.Error(err))
			r.sleep(ctx, r.storeBackoff)
			continue
		}
		if !ok {
			// Pop timeout: loop again so shutdown is observed.
			continue
		}

		r.handle(ctx, payload)
	}
}

func (r *Runner) handle(ctx context.Context, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic recovered in job handler",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	if err := r.handler(ctx, payload); err != nil {
		domainErr := apperrors.ToDomainError(err)
		r.logger.Error("job failed",
			zap.String("code", domainErr.Code),
			zap.Error(domainErr))
		if apperrors.IsStoreUnavailable(err) {
			// The job is lost until the reconciler re-derives it; back off
			// instead of hammering an unreachable store.
			r.sleep(ctx, r.storeBackoff)
		}
	}
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
