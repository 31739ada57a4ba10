package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on a Redis list plus a sorted set for delayed
// redeliveries. Due entries are promoted from the sorted set to the list on
// every dequeue.
type RedisQueue struct {
	client  *redis.Client
	ready   string
	delayed string
}

func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{
		client:  client,
		ready:   name,
		delayed: name + ":delayed",
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, id uuid.UUID) error {
	return q.push(ctx, Task{TransactionID: id, DeliveryCount: 1})
}

func (q *RedisQueue) push(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.ready, payload).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.TransactionID, err)
	}
	return nil
}

func (q *RedisQueue) EnqueueAfter(ctx context.Context, task Task, delay time.Duration) error {
	task.DeliveryCount++
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.client.ZAdd(ctx, q.delayed, redis.Z{Score: due, Member: payload}).Err(); err != nil {
		return fmt.Errorf("schedule %s: %w", task.TransactionID, err)
	}
	return nil
}

// promoteDue moves every due delayed entry onto the ready list.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	due, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("promote due tasks: %w", err)
	}
	for _, payload := range due {
		// Remove first so two pollers cannot promote the same entry.
		removed, err := q.client.ZRem(ctx, q.delayed, payload).Result()
		if err != nil {
			return fmt.Errorf("promote due tasks: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.ready, payload).Err(); err != nil {
			return fmt.Errorf("promote due tasks: %w", err)
		}
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		if err := q.promoteDue(ctx); err != nil {
			return nil, err
		}
		res, err := q.client.BRPop(ctx, 5*time.Second, q.ready).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("dequeue: %w", err)
		}
		// BRPop returns [key, value].
		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			return nil, fmt.Errorf("malformed task payload: %w", err)
		}
		return &task, nil
	}
}
