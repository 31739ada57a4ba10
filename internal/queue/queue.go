// Package queue is the durable task channel between intake and workers. It
// offers at-least-once delivery; the claim protocol in the metadata store is
// what makes replays safe.
package queue

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Task is one delivery. DeliveryCount counts how often this transaction has
// been handed to a worker, including this delivery.
type Task struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	DeliveryCount int       `json:"delivery_count"`
}

// Queue is the contract the worker pool consumes.
type Queue interface {
	// Enqueue makes the transaction available for immediate delivery.
	Enqueue(ctx context.Context, id uuid.UUID) error

	// EnqueueAfter schedules a redelivery, carrying the delivery count
	// forward for the backoff computation.
	EnqueueAfter(ctx context.Context, task Task, delay time.Duration) error

	// Dequeue blocks until a task is available or the context ends.
	Dequeue(ctx context.Context) (*Task, error)
}

// Backoff settings for transient-failure redelivery.
type Backoff struct {
	Base        time.Duration
	Factor      float64
	Cap         time.Duration
	MaxAttempts int
}

// DefaultBackoff matches the retry discipline of the pipeline: one minute
// base, doubling, capped at ten minutes, five attempts.
var DefaultBackoff = Backoff{
	Base:        60 * time.Second,
	Factor:      2,
	Cap:         600 * time.Second,
	MaxAttempts: 5,
}

// Delay computes the pause before the given attempt (1-based), with a
// +-25% jitter so retries from a burst of failures spread out.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Base)
	for i := 1; i < attempt; i++ {
		d *= b.Factor
		if d >= float64(b.Cap) {
			d = float64(b.Cap)
			break
		}
	}
	jitter := 1 + (rand.Float64()*0.5 - 0.25)
	d *= jitter
	if d > float64(b.Cap) {
		d = float64(b.Cap)
	}
	return time.Duration(d)
}
