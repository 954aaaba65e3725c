package queue

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

const memoryQueueDepth = 1024

// MemoryQueue is a channel-backed Queue for dev runs and tests.
type MemoryQueue struct {
	mu    sync.Mutex
	lists map[string]chan []byte
}

// NewMemoryQueue initializes an empty in-memory queue set.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{lists: make(map[string]chan []byte)}
}

func (q *MemoryQueue) list(name string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.lists[name]
	if !ok {
		ch = make(chan []byte, memoryQueueDepth)
		q.lists[name] = ch
	}
	return ch
}

// Push appends the payload to the named list.
func (q *MemoryQueue) Push(ctx context.Context, name string, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	select {
	case q.list(name) <- cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return apperrors.NewStoreError(errQueueFull{name})
	}
}

// PopBlocking waits up to timeout for an element on the named list.
func (q *MemoryQueue) PopBlocking(ctx context.Context, name string, timeout time.Duration) ([]byte, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case payload := <-q.list(name):
		return payload, true, nil
	case <-timer.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Len reports the number of pending elements on the named list.
func (q *MemoryQueue) Len(name string) int {
	return len(q.list(name))
}

type errQueueFull struct {
	name string
}

func (e errQueueFull) Error() string {
	return "queue " + e.name + " is full"
}
