package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/taskflow/internal/scheduler"
)

// ReportFunc lets an executor report progress while working.
type ReportFunc func(percent int, message string)

// ExecuteFunc performs the actual work of one task and returns the artifact
// references it produced. Error classification drives what happens next:
//   - Transient(err): retried in place with backoff, behind the breaker
//   - Permanent(err): reported to the scheduler as non-retryable
//   - any other error: reported to the scheduler as retryable
type ExecuteFunc func(ctx context.Context, task *scheduler.Task, report ReportFunc) ([]string, error)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so the pool reports the failure as
// non-retryable.
func Permanent(err error) error { return &permanentError{err: err} }

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps an infrastructure-level error (spawn flake, dropped
// connection) so the pool retries it in place instead of burning one of the
// task's scheduler-side attempts.
func Transient(err error) error { return &transientError{err: err} }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	Workers int // Max concurrent task executions (default 4)
	Retry   RetryConfig
}

// Pool is the worker collaborator: it consumes the scheduler's dispatch
// stream with bounded concurrency, runs each task through the execute
// function, and reports start/progress/complete/fail back to the scheduler.
type Pool struct {
	sched    *scheduler.Scheduler
	execute  ExecuteFunc
	cfg      PoolConfig
	breakers *BreakerRegistry
}

// NewPool creates a worker pool.
func NewPool(sched *scheduler.Scheduler, execute ExecuteFunc, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	return &Pool{
		sched:    sched,
		execute:  execute,
		cfg:      cfg,
		breakers: NewBreakerRegistry(),
	}
}

// Run consumes dispatches until the stream closes or ctx is cancelled.
// Each task runs in its own goroutine, bounded by cfg.Workers; a full pool
// stops draining the stream, which pushes back on the dispatcher.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case task, ok := <-p.sched.Dispatches():
			if !ok {
				return g.Wait()
			}
			t := task
			g.Go(func() error {
				p.runTask(gctx, t)
				return nil
			})
		}
	}
}

// runTask executes a single dispatched task and reports the outcome.
func (p *Pool) runTask(ctx context.Context, task *scheduler.Task) {
	workerID := fmt.Sprintf("worker-%s", uuid.NewString()[:8])

	if err := p.sched.StartTask(task.ID, workerID); err != nil {
		log.Printf("WARNING: could not start task %q: %v", task.ID, err)
		return
	}

	report := func(percent int, message string) {
		if err := p.sched.Progress(task.ID, percent, message); err != nil {
			log.Printf("WARNING: progress report for task %q rejected: %v", task.ID, err)
		}
	}

	// Breakers are keyed by task type: infrastructure failures cluster by
	// the kind of work being done, not by the goroutine doing it.
	cb := p.breakers.Get(string(task.Type))

	artifacts, err := runWithRetry(ctx, cb, p.cfg.Retry, func() ([]string, error) {
		return p.execute(ctx, task, report)
	})
	if err != nil {
		retryable := !isPermanent(err)
		if failErr := p.sched.Fail(task.ID, err.Error(), retryable); failErr != nil {
			log.Printf("ERROR: failed to record failure for task %q: %v", task.ID, failErr)
		}
		return
	}

	if err := p.sched.Complete(task.ID, artifacts); err != nil {
		log.Printf("ERROR: failed to record completion for task %q: %v", task.ID, err)
	}
}
