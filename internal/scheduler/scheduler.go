// Package scheduler runs compilation tasks concurrently on a bounded worker pool.
//
// Submission never blocks. Each task exposes a completion channel so callers can
// join without spinning, and a failing or panicking task never affects its siblings.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrStopped is returned by Submit after Stop has been called
var ErrStopped = errors.New("scheduler stopped")

// Func is the work performed by a task
type Func func(ctx context.Context) (string, int, error)

// Result is the outcome of one task
type Result struct {
	// Output is the captured process output
	Output string
	// ExitCode is the process exit code
	ExitCode int
	// Err reports a failure to run the task at all
	Err error
}

// Failed returns true if the task errored or exited non-zero
func (r Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Task is a handle to submitted work
type Task struct {
	Name string

	done   chan struct{}
	result Result
}

// IsComplete returns true once the task has finished
func (t *Task) IsComplete() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done is closed when the task finishes
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes and returns its result
func (t *Task) Wait() Result {
	<-t.done
	return t.result
}

// Scheduler is a bounded concurrent task runner
type Scheduler struct {
	workers int
	sem     *semaphore.Weighted
	stopped atomic.Bool

	mu    sync.Mutex
	tasks map[*Task]struct{}
}

// New creates a scheduler running at most workers tasks at once.
// A non-positive count selects the number of CPUs.
func New(workers int) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Scheduler{
		workers: workers,
		sem:     semaphore.NewWeighted(int64(workers)),
		tasks:   make(map[*Task]struct{}),
	}
}

// Workers returns the pool bound
func (s *Scheduler) Workers() int {
	return s.workers
}

// Submit queues fn and returns immediately
func (s *Scheduler) Submit(ctx context.Context, name string, fn Func) (*Task, error) {
	if s.stopped.Load() {
		return nil, ErrStopped
	}

	t := &Task{Name: name, done: make(chan struct{})}

	s.mu.Lock()
	s.tasks[t] = struct{}{}
	s.mu.Unlock()

	go s.run(ctx, t, fn)

	return t, nil
}

func (s *Scheduler) run(ctx context.Context, t *Task, fn Func) {
	defer close(t.done)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		t.result = Result{ExitCode: -1, Err: err}
		return
	}
	defer s.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			t.result = Result{ExitCode: -1, Err: fmt.Errorf("task %s panicked: %v", t.Name, r)}
		}
	}()

	out, code, err := fn(ctx)
	t.result = Result{Output: out, ExitCode: code, Err: err}
}

// Clear forgets a task. Clearing a running task does not stop it.
func (s *Scheduler) Clear(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, t)
}

// Pending returns the number of tracked tasks that have not completed
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for t := range s.tasks {
		if !t.IsComplete() {
			n++
		}
	}

	return n
}

// Stop declines further submissions. Tasks already submitted run to completion.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
}

// Stopped returns true after Stop
func (s *Scheduler) Stopped() bool {
	return s.stopped.Load()
}

// Join waits for every task and returns their results in order
func Join(tasks []*Task) []Result {
	results := make([]Result, len(tasks))
	for i, t := range tasks {
		results[i] = t.Wait()
	}

	return results
}
