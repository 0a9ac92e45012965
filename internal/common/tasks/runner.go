package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"eligibility-service/internal/common/logger"
	"eligibility-service/internal/common/metrics"
)

var ErrRunnerClosed = errors.New("RUNNER_CLOSED")

// Runner spawns fire-and-forget background tasks, one goroutine each.
// There is no admission control and no cancellation: every task receives a
// context detached from the caller and runs until it returns. Tasks are not
// persisted, so anything still running at process exit is lost.
type Runner struct {
	logger   logger.Logger
	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

func NewRunner(log logger.Logger) *Runner {
	return &Runner{
		logger: log.With(map[string]interface{}{"component": "task-runner"}),
	}
}

// Go schedules fn. A panic inside fn is recovered and logged.
func (r *Runner) Go(name string, fn func(ctx context.Context)) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrRunnerClosed
	}
	r.wg.Add(1)
	r.mu.RUnlock()

	r.inFlight.Add(1)
	metrics.TasksInFlight.Inc()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background task panicked", map[string]interface{}{
					"task":  name,
					"panic": fmt.Sprint(rec),
					"stack": string(debug.Stack()),
				})
			}
			metrics.TasksInFlight.Dec()
			r.inFlight.Add(-1)
			r.wg.Done()
		}()
		fn(context.Background())
	}()

	return nil
}

// InFlight returns the number of tasks currently running.
func (r *Runner) InFlight() int64 {
	return r.inFlight.Load()
}

// Shutdown stops accepting tasks and waits for running ones until ctx ends.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("shutdown deadline reached with tasks still running", map[string]interface{}{
			"inFlight": r.inFlight.Load(),
		})
		return ctx.Err()
	}
}
