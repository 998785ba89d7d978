// Package dispatch hands inbound work off to background processing. Two
// implementations exist: an in-process worker pool, and a Redis Streams
// consumer group for deployments with several instances. Tasks are
// processed at most once per dispatcher and never retried; a failed task
// is logged and acknowledged.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of queued work.
type Task struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Payload    []byte    `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTask builds a task with a fresh id and enqueue timestamp.
func NewTask(kind string, payload []byte) Task {
	return Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Handler processes one task. Returned errors are logged by the
// dispatcher, not retried.
type Handler func(ctx context.Context, task Task) error

// Dispatcher accepts tasks for asynchronous processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
	Close(ctx context.Context) error
}

func runTask(ctx context.Context, log *slog.Logger, handler Handler, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("task handler panicked",
				slog.String("task_id", task.ID),
				slog.String("kind", task.Kind),
				slog.Any("panic", r),
			)
		}
	}()
	start := time.Now()
	if err := handler(ctx, task); err != nil {
		log.Error("task failed",
			slog.String("task_id", task.ID),
			slog.String("kind", task.Kind),
			slog.Any("error", err),
		)
		return
	}
	log.Debug("task done",
		slog.String("task_id", task.ID),
		slog.String("kind", task.Kind),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
}
