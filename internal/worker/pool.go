package worker

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SHDeniz/IIEV-Ultra/internal/queue"
)

// Pool runs a fixed number of workers, each consuming tasks from the queue
// one at a time. Stages within a task are strictly sequential; concurrency
// exists only across transactions.
type Pool struct {
	Processor   *Processor
	Queue       queue.Queue
	Concurrency int
	TaskTimeout time.Duration
}

// Run blocks until the context is cancelled. Task-level failures never
// stop the pool; only context cancellation does.
func (p *Pool) Run(ctx context.Context) error {
	concurrency := p.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := p.TaskTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		worker := i
		g.Go(func() error {
			log := p.Processor.Log.With("worker", worker)
			for {
				task, err := p.Queue.Dequeue(ctx)
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				if err != nil {
					log.Error("dequeue failed", "error", err)
					select {
					case <-time.After(time.Second):
						continue
					case <-ctx.Done():
						return nil
					}
				}

				// A hung task, including a stuck subprocess, is cut off
				// here; the cancellation surfaces as a transient error.
				taskCtx, cancel := context.WithTimeout(ctx, timeout)
				if err := p.Processor.Handle(taskCtx, task); err != nil {
					log.Error("task bookkeeping failed", "transaction_id", task.TransactionID, "error", err)
				}
				cancel()
			}
		})
	}
	return g.Wait()
}
