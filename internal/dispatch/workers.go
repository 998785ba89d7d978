package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Workers is the in-process dispatcher: a bounded queue drained by a fixed
// pool of goroutines. Dispatch reports queue saturation to the caller
// instead of blocking or dropping silently.
type Workers struct {
	logger  *slog.Logger
	handler Handler
	queue   chan Task

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewWorkers starts a worker pool. The handler is fixed for the pool's
// lifetime.
func NewWorkers(log *slog.Logger, handler Handler, workers, queueSize int) *Workers {
	if log == nil {
		log = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	w := &Workers{
		logger:  log.With(slog.String("service", "dispatch-workers")),
		handler: handler,
		queue:   make(chan Task, queueSize),
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	return w
}

func (w *Workers) run() {
	defer w.wg.Done()
	for task := range w.queue {
		runTask(context.Background(), w.logger, w.handler, task)
	}
}

// Dispatch enqueues a task. It fails when the queue is full or the pool is
// closed; the caller decides what a refused hand-off means.
func (w *Workers) Dispatch(ctx context.Context, task Task) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("dispatch: worker pool is closed")
	}
	select {
	case w.queue <- task:
		w.logger.Debug("task queued",
			slog.String("task_id", task.ID),
			slog.String("kind", task.Kind),
			slog.Int("depth", len(w.queue)),
		)
		return nil
	default:
		return fmt.Errorf("dispatch: queue is full (%d tasks)", cap(w.queue))
	}
}

// Close stops intake and waits for queued tasks to drain, bounded by ctx.
func (w *Workers) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
