package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FakeQueue is an unbounded in-memory Queue for tests. Delays are ignored;
// scheduled tasks become available immediately.
type FakeQueue struct {
	tasks chan Task
}

func NewFakeQueue() *FakeQueue {
	return &FakeQueue{tasks: make(chan Task, 128)}
}

func (q *FakeQueue) Enqueue(_ context.Context, id uuid.UUID) error {
	q.tasks <- Task{TransactionID: id, DeliveryCount: 1}
	return nil
}

func (q *FakeQueue) EnqueueAfter(_ context.Context, task Task, _ time.Duration) error {
	task.DeliveryCount++
	q.tasks <- task
	return nil
}

func (q *FakeQueue) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case task := <-q.tasks:
		return &task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of pending tasks.
func (q *FakeQueue) Len() int { return len(q.tasks) }
