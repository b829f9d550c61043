package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ijtihad-backend/model"

	"github.com/redis/go-redis/v9"
)

const queueKey = "ijtihad:tasks"

// Queue is a Redis-list-backed work queue. Submission handlers LPUSH
// work items and workers BRPOP them; the list is the only coupling
// between the two sides.
type Queue struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Queue{client: client}, nil
}

// NewFromClient wraps an existing client. Used by tests.
func NewFromClient(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Enqueue(ctx context.Context, item model.WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, queueKey, data).Err()
}

// Dequeue blocks for up to blockFor and returns the next work item, or
// nil if the queue stayed empty.
func (q *Queue) Dequeue(ctx context.Context, blockFor time.Duration) (*model.WorkItem, error) {
	result, err := q.client.BRPop(ctx, blockFor, queueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result: %v", result)
	}

	var item model.WorkItem
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}
