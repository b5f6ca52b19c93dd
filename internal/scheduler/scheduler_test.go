package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultWorkers(t *testing.T) {
	s := New(0)
	assert.Greater(t, s.Workers(), 0)
	assert.Equal(t, 3, New(3).Workers())
}

func TestSubmit_RunsAndJoins(t *testing.T) {
	s := New(2)

	var tasks []*Task
	for i := 0; i < 5; i++ {
		i := i
		task, err := s.Submit(context.Background(), fmt.Sprintf("unit%d", i), func(ctx context.Context) (string, int, error) {
			return fmt.Sprintf("out%d", i), 0, nil
		})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	results := Join(tasks)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("out%d", i), r.Output)
		assert.False(t, r.Failed())
		assert.True(t, tasks[i].IsComplete())
	}
}

func TestSubmit_BoundedConcurrency(t *testing.T) {
	s := New(2)

	var running, peak atomic.Int32
	var tasks []*Task
	for i := 0; i < 8; i++ {
		task, err := s.Submit(context.Background(), "t", func(ctx context.Context) (string, int, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}

			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return "", 0, nil
		})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	Join(tasks)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSubmit_NonBlocking(t *testing.T) {
	s := New(1)
	release := make(chan struct{})

	first, err := s.Submit(context.Background(), "blocker", func(ctx context.Context) (string, int, error) {
		<-release
		return "", 0, nil
	})
	require.NoError(t, err)

	// the pool is saturated, yet submission returns immediately
	second, err := s.Submit(context.Background(), "queued", func(ctx context.Context) (string, int, error) {
		return "done", 0, nil
	})
	require.NoError(t, err)

	assert.False(t, first.IsComplete())
	assert.False(t, second.IsComplete())
	assert.Equal(t, 2, s.Pending())

	close(release)
	assert.Equal(t, "done", second.Wait().Output)
	first.Wait()
	assert.Equal(t, 0, s.Pending())
}

func TestSubmit_FailureIsolation(t *testing.T) {
	s := New(4)

	fns := []Func{
		func(ctx context.Context) (string, int, error) { return "ok", 0, nil },
		func(ctx context.Context) (string, int, error) { return "a.cpp(1): error", 2, nil },
		func(ctx context.Context) (string, int, error) { panic("boom") },
		func(ctx context.Context) (string, int, error) { return "", -1, errors.New("spawn failed") },
		func(ctx context.Context) (string, int, error) { return "ok", 0, nil },
	}

	var tasks []*Task
	for i, fn := range fns {
		task, err := s.Submit(context.Background(), fmt.Sprintf("t%d", i), fn)
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	results := Join(tasks)
	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.Equal(t, 2, results[1].ExitCode)
	assert.True(t, results[2].Failed())
	assert.Contains(t, results[2].Err.Error(), "panicked")
	assert.True(t, results[3].Failed())
	assert.False(t, results[4].Failed())
}

func TestStop_DeclinesNewSubmissions(t *testing.T) {
	s := New(1)
	release := make(chan struct{})

	running, err := s.Submit(context.Background(), "running", func(ctx context.Context) (string, int, error) {
		<-release
		return "finished", 0, nil
	})
	require.NoError(t, err)

	s.Stop()
	assert.True(t, s.Stopped())

	_, err = s.Submit(context.Background(), "late", func(ctx context.Context) (string, int, error) {
		return "", 0, nil
	})
	assert.ErrorIs(t, err, ErrStopped)

	close(release)
	assert.Equal(t, "finished", running.Wait().Output, "already spawned work runs to completion")
}

func TestClear(t *testing.T) {
	s := New(1)
	task, err := s.Submit(context.Background(), "t", func(ctx context.Context) (string, int, error) {
		return "", 0, nil
	})
	require.NoError(t, err)

	task.Wait()
	s.Clear(task)
	assert.Equal(t, 0, s.Pending())
}

func TestSubmit_CanceledContext(t *testing.T) {
	s := New(1)
	release := make(chan struct{})
	defer close(release)

	_, err := s.Submit(context.Background(), "blocker", func(ctx context.Context) (string, int, error) {
		<-release
		return "", 0, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	task, err := s.Submit(ctx, "waiting", func(ctx context.Context) (string, int, error) {
		return "", 0, nil
	})
	require.NoError(t, err)

	cancel()
	res := task.Wait()
	assert.ErrorIs(t, res.Err, context.Canceled)
}
