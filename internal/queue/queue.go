package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"payment-relay/internal/config"
	"payment-relay/internal/model"
)

// queueKey is the Redis list holding pending payment messages.
const queueKey = "payments_queue"

var (
	// ErrStoreUnavailable reports that the backing store could not be
	// reached. Callers retry; the message is never lost on push failure
	// because the push itself did not happen.
	ErrStoreUnavailable = errors.New("queue: store unavailable")

	// ErrMalformed reports an undecodable queue entry. The entry has
	// already been removed from the queue and must be discarded.
	ErrMalformed = errors.New("queue: malformed message")
)

// Queue is the durable FIFO of pending payments. Implementations are
// injected at construction so tests can substitute in-memory fakes.
type Queue interface {
	// Push appends a message to the tail.
	Push(ctx context.Context, msg model.QueueMessage) error
	// Pop blocks for the configured timeout waiting for the head message.
	// It returns (nil, nil) when the queue stayed empty.
	Pop(ctx context.Context) (*model.QueueMessage, error)
}

// RedisQueue is a Queue on a Redis list: LPUSH at the tail, BRPOP at the
// head. Messages survive process restarts; removal is atomic with Pop.
type RedisQueue struct {
	rdb        *redis.Client
	popTimeout time.Duration
}

// NewRedisQueue creates a queue with the default pop timeout.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return NewRedisQueueWithTimeout(rdb, config.QueuePopTimeout)
}

// NewRedisQueueWithTimeout creates a queue with a custom pop timeout for
// testing.
func NewRedisQueueWithTimeout(rdb *redis.Client, popTimeout time.Duration) *RedisQueue {
	return &RedisQueue{rdb: rdb, popTimeout: popTimeout}
}

func (q *RedisQueue) Push(ctx context.Context, msg model.QueueMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: marshal message %s: %w", msg.ID, err)
	}
	if err := q.rdb.LPush(ctx, queueKey, data).Err(); err != nil {
		return fmt.Errorf("%w: lpush: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (*model.QueueMessage, error) {
	vals, err := q.rdb.BRPop(ctx, q.popTimeout, queueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: brpop: %v", ErrStoreUnavailable, err)
	}

	// BRPOP returns [key, value]; the value is a JSON-encoded envelope.
	var msg model.QueueMessage
	if err := json.Unmarshal([]byte(vals[1]), &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &msg, nil
}
