// Package queue abstracts the durable FIFO lists that hand work between
// pipeline stages. Delivery is at-least-once: consumers must tolerate
// duplicates and reordering, and the store, not the queue, is the source
// of truth for what work remains.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// Queue is a set of named durable FIFO lists. Push never blocks beyond the
// enqueue itself. PopBlocking returns ok=false on timeout; the timeout
// exists purely so worker loops can observe shutdown, not for correctness.
type Queue interface {
	Push(ctx context.Context, name string, payload []byte) error
	PopBlocking(ctx context.Context, name string, timeout time.Duration) (payload []byte, ok bool, err error)
}

// PushJob marshals and enqueues a stage job.
func PushJob(ctx context.Context, q Queue, name string, job domain.Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.Push(ctx, name, payload)
}

// DecodeJob parses a queue payload into a Job.
func DecodeJob(payload []byte) (domain.Job, error) {
	var job domain.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return domain.Job{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}
