package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// RedisQueue implements Queue on Redis lists: RPUSH to enqueue, BLPOP to
// consume. FIFO per list; durability follows the Redis persistence config.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue wraps an existing go-redis client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Push appends the payload to the named list.
func (q *RedisQueue) Push(ctx context.Context, name string, payload []byte) error {
	if err := q.client.RPush(ctx, name, payload).Err(); err != nil {
		return apperrors.NewStoreError(err)
	}
	return nil
}

// PopBlocking waits up to timeout for an element on the named list.
func (q *RedisQueue) PopBlocking(ctx context.Context, name string, timeout time.Duration) ([]byte, bool, error) {
	result, err := q.client.BLPop(ctx, timeout, name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, apperrors.NewStoreError(err)
	}
	// BLPOP returns [key, value].
	if len(result) < 2 {
		return nil, false, nil
	}
	return []byte(result[1]), true, nil
}
