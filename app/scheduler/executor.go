package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Executor delivers recipient tasks through a bounded worker pool. Each task
// gets a fixed number of attempts with a fixed delay between them.
type Executor struct {
	store       ChannelStore
	logger      *log.Logger
	maxAttempts int
	retryDelay  time.Duration
	workers     chan struct{}
	wg          sync.WaitGroup
}

func NewExecutor(store ChannelStore, logger *log.Logger, maxAttempts int, retryDelay time.Duration, maxWorkers int) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if maxWorkers <= 0 {
		maxWorkers = 100
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{
		store:       store,
		logger:      logger,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		workers:     make(chan struct{}, maxWorkers),
	}
}

// Submit hands a batch of tasks to the pool and returns immediately
func (e *Executor) Submit(ctx context.Context, job *Job, tasks []Task) {
	for _, task := range tasks {
		t := task
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			select {
			case e.workers <- struct{}{}:
				defer func() { <-e.workers }()
			case <-ctx.Done():
				return
			}
			e.run(ctx, job, t)
		}()
	}
}

// Wait blocks until all submitted tasks have finished
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) run(ctx context.Context, job *Job, task Task) {
	pending, err := e.store.TaskPending(ctx, task.RecipientID)
	if err != nil {
		e.logger.Printf("%s: recipient id=%d status check failed: %v", e.store.Name(), task.RecipientID, err)
		return
	}
	if !pending {
		return
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		lastErr = e.store.Deliver(ctx, job, task)
		if lastErr == nil {
			deliveryAttempts.WithLabelValues(e.store.Name(), "delivered").Inc()
			return
		}
		deliveryAttempts.WithLabelValues(e.store.Name(), "failed").Inc()
		e.logger.Printf("%s: dispatch id=%d recipient id=%d attempt %d/%d failed: %v",
			e.store.Name(), job.ID, task.RecipientID, attempt, e.maxAttempts, lastErr)

		if attempt < e.maxAttempts {
			if err := e.store.FailTask(ctx, task.RecipientID, lastErr.Error()); err != nil {
				e.logger.Printf("%s: recipient id=%d mark failed: %v", e.store.Name(), task.RecipientID, err)
			}
			select {
			case <-time.After(e.retryDelay):
			case <-ctx.Done():
				return
			}
		}
	}

	if err := e.store.FailTask(ctx, task.RecipientID, "Max retries exceeded: "+lastErr.Error()); err != nil {
		e.logger.Printf("%s: recipient id=%d mark failed: %v", e.store.Name(), task.RecipientID, err)
	}
}
