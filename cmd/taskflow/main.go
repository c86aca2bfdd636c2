package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/journal"
	"github.com/aristath/taskflow/internal/scheduler"
	"github.com/aristath/taskflow/internal/worker"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <plan.json>\n", os.Args[0])
		os.Exit(1)
	}
	planPath := os.Args[1]

	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	tick, err := cfg.Scheduler.TickDuration()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p, err := loadPlan(planPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tasks, deps, err := p.build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sched := scheduler.New(scheduler.Config{
		ConcurrencyLimit: cfg.Scheduler.ConcurrencyLimit,
		TickInterval:     tick,
		MaxRetries:       cfg.Scheduler.MaxRetries,
		DispatchBuffer:   cfg.Scheduler.DispatchBuffer,
	})

	if cfg.Journal.Enabled {
		store, err := journal.NewSQLiteStore(ctx, cfg.Journal.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		recorder := journal.NewRecorder(store, sched)
		go func() {
			if err := recorder.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("WARNING: journal recorder exited: %v", err)
			}
		}()
	}

	// Subscribe before inserting so no progress events are missed
	progress := sched.Bus().Subscribe(events.TopicScheduler, 64)

	pool := worker.NewPool(sched, simulateWork, worker.PoolConfig{Workers: cfg.Worker.Workers})
	poolDone := make(chan error, 1)
	go func() {
		poolDone <- pool.Run(ctx)
	}()

	if err := sched.AddBatch(tasks, deps); err != nil {
		fmt.Fprintf(os.Stderr, "Error inserting plan: %v\n", err)
		os.Exit(1)
	}
	if err := sched.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting scheduler: %v\n", err)
		os.Exit(1)
	}

	waitForCompletion(ctx, progress)

	sched.Stop()
	<-poolDone

	printSummary(sched)
}

// waitForCompletion blocks until every task reaches a terminal state, the
// run stalls on a permanent failure, or a shutdown signal arrives.
func waitForCompletion(ctx context.Context, progress <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			log.Println("Shutdown signal received, stopping scheduler...")
			return
		case event, ok := <-progress:
			if !ok {
				return
			}
			e, isProgress := event.(events.SchedulerProgressEvent)
			if !isProgress {
				continue
			}
			if e.Completed+e.Failed == e.Total {
				return
			}
			// Permanently failed dependencies leave their dependents
			// pending forever; nothing left to do. A pending backoff timer
			// is not a stall, its task re-queues on its own.
			if e.Failed > 0 && e.Running == 0 && e.Queued == 0 && e.Retrying == 0 {
				log.Printf("WARNING: %d tasks blocked by permanent failures", e.Pending)
				return
			}
		}
	}
}

func printSummary(sched *scheduler.Scheduler) {
	st := sched.Snapshot()
	fmt.Printf("\nRun finished: %d/%d completed, %d failed (%.0f%%)\n",
		st.Completed, st.Total, st.Failed, st.ProgressPercent)

	for _, task := range sched.Tasks() {
		if task.Escalated {
			fmt.Printf("  ESCALATED %s: %s\n", task.ID, lastIssue(task))
		}
	}

	path, hours := sched.CriticalPath()
	ids := make([]string, len(path))
	for i, task := range path {
		ids[i] = task.ID
	}
	fmt.Printf("Critical path (%.1fh): %s\n", hours, strings.Join(ids, " -> "))
}

func lastIssue(task *scheduler.Task) string {
	if len(task.Issues) == 0 {
		return "no issue recorded"
	}
	return task.Issues[len(task.Issues)-1].Message
}

// simulateWork stands in for the real worker collaborator: it sleeps a few
// milliseconds per estimated hour and reports progress along the way.
func simulateWork(ctx context.Context, task *scheduler.Task, report worker.ReportFunc) ([]string, error) {
	steps := 4
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(task.EstimatedHours*10/float64(steps)) * time.Millisecond):
		}
		report(i*100/steps, fmt.Sprintf("step %d/%d", i, steps))
	}
	return []string{fmt.Sprintf("artifact://%s", task.ID)}, nil
}
