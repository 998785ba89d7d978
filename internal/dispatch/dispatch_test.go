package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recorder struct {
	mu    sync.Mutex
	tasks []Task
}

func (r *recorder) handle(_ context.Context, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func TestNewTaskPopulatesFields(t *testing.T) {
	task := NewTask("inbound_message", []byte(`{"text":"hi"}`))
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "inbound_message", task.Kind)
	assert.Equal(t, []byte(`{"text":"hi"}`), task.Payload)
	assert.False(t, task.EnqueuedAt.IsZero())
}

func TestWorkersProcessAllTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{}
	pool := NewWorkers(nil, rec.handle, 3, 16)
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Dispatch(context.Background(), NewTask("test", []byte(fmt.Sprintf("%d", i)))))
	}
	require.NoError(t, pool.Close(context.Background()))

	assert.Equal(t, 10, rec.count())
}

func TestWorkersDispatchFailsWhenQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	gate := make(chan struct{})
	handler := func(context.Context, Task) error {
		started <- struct{}{}
		<-gate
		return nil
	}
	pool := NewWorkers(nil, handler, 1, 1)

	// First task is taken by the worker, second fills the queue.
	require.NoError(t, pool.Dispatch(context.Background(), NewTask("test", nil)))
	<-started
	require.NoError(t, pool.Dispatch(context.Background(), NewTask("test", nil)))

	err := pool.Dispatch(context.Background(), NewTask("test", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")

	close(gate)
	<-started
	require.NoError(t, pool.Close(context.Background()))
}

func TestWorkersDispatchFailsAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewWorkers(nil, (&recorder{}).handle, 1, 1)
	require.NoError(t, pool.Close(context.Background()))

	err := pool.Dispatch(context.Background(), NewTask("test", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestWorkersCloseDrainsQueuedTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{}
	slow := func(ctx context.Context, task Task) error {
		time.Sleep(5 * time.Millisecond)
		return rec.handle(ctx, task)
	}
	pool := NewWorkers(nil, slow, 2, 8)
	for i := 0; i < 6; i++ {
		require.NoError(t, pool.Dispatch(context.Background(), NewTask("test", nil)))
	}
	require.NoError(t, pool.Close(context.Background()))

	assert.Equal(t, 6, rec.count())
}

func TestWorkersRecoverFromHandlerPanic(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{}
	handler := func(ctx context.Context, task Task) error {
		if task.Kind == "boom" {
			panic("handler exploded")
		}
		return rec.handle(ctx, task)
	}
	pool := NewWorkers(nil, handler, 1, 4)
	require.NoError(t, pool.Dispatch(context.Background(), NewTask("boom", nil)))
	require.NoError(t, pool.Dispatch(context.Background(), NewTask("ok", nil)))
	require.NoError(t, pool.Close(context.Background()))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, "ok", rec.tasks[0].Kind)
}

func TestWorkersClosingTwiceIsSafe(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewWorkers(nil, (&recorder{}).handle, 1, 1)
	require.NoError(t, pool.Close(context.Background()))
	require.NoError(t, pool.Close(context.Background()))
}

func TestRedisOptionsDefaults(t *testing.T) {
	opts := RedisOptions{}.withDefaults()
	assert.Equal(t, "leadwire:inbound", opts.Stream)
	assert.Equal(t, "leadwire-workers", opts.Group)
	assert.True(t, strings.HasPrefix(opts.Consumer, "leadwire-"))
	assert.Greater(t, len(opts.Consumer), len("leadwire-"))

	opts = RedisOptions{Stream: "crm:events", Group: "crm", Consumer: "crm-1"}.withDefaults()
	assert.Equal(t, RedisOptions{Stream: "crm:events", Group: "crm", Consumer: "crm-1"}, opts)
}
