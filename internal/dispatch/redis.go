package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultStream = "leadwire:inbound"
	defaultGroup  = "leadwire-workers"
	readBlock     = 5 * time.Second
	readCount     = 16
)

// RedisOptions names the stream a dispatcher reads and writes. Blank
// fields fall back to the package defaults; a blank consumer gets a
// random suffix so two instances never collide.
type RedisOptions struct {
	Stream   string
	Group    string
	Consumer string
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.Stream == "" {
		o.Stream = defaultStream
	}
	if o.Group == "" {
		o.Group = defaultGroup
	}
	if o.Consumer == "" {
		o.Consumer = "leadwire-" + uuid.NewString()[:8]
	}
	return o
}

// RedisDispatcher publishes tasks to a Redis stream and consumes them
// through a consumer group, so several instances can share one queue.
type RedisDispatcher struct {
	logger  *slog.Logger
	rdb     *redis.Client
	handler Handler
	opts    RedisOptions
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRedisDispatcher ensures the consumer group exists and starts the
// consume loop. The client is owned by the caller and not closed here.
func NewRedisDispatcher(ctx context.Context, log *slog.Logger, rdb *redis.Client, handler Handler, opts RedisOptions) (*RedisDispatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	d := &RedisDispatcher{
		logger:  log.With(slog.String("service", "dispatch-redis")),
		rdb:     rdb,
		handler: handler,
		opts:    opts.withDefaults(),
		done:    make(chan struct{}),
	}
	if err := d.ensureGroup(ctx); err != nil {
		return nil, err
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go d.consumeLoop(loopCtx)
	return d, nil
}

func (d *RedisDispatcher) ensureGroup(ctx context.Context) error {
	err := d.rdb.XGroupCreateMkStream(ctx, d.opts.Stream, d.opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Dispatch appends the task to the stream.
func (d *RedisDispatcher) Dispatch(ctx context.Context, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := d.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: d.opts.Stream,
		Values: map[string]any{"task": string(raw)},
	}).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	d.logger.Debug("task queued",
		slog.String("task_id", task.ID),
		slog.String("kind", task.Kind),
	)
	return nil
}

func (d *RedisDispatcher) consumeLoop(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := d.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    d.opts.Group,
			Consumer: d.opts.Consumer,
			Streams:  []string{d.opts.Stream, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("read stream", slog.Any("error", err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				d.handleMessage(ctx, msg)
			}
		}
	}
}

// handleMessage acknowledges every entry it sees. Malformed entries are
// logged and dropped rather than left pending forever.
func (d *RedisDispatcher) handleMessage(ctx context.Context, msg redis.XMessage) {
	defer func() {
		if err := d.rdb.XAck(context.WithoutCancel(ctx), d.opts.Stream, d.opts.Group, msg.ID).Err(); err != nil {
			d.logger.Warn("ack failed", slog.String("stream_id", msg.ID), slog.Any("error", err))
		}
	}()

	raw, ok := msg.Values["task"].(string)
	if !ok {
		d.logger.Warn("stream entry missing task field", slog.String("stream_id", msg.ID))
		return
	}
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		d.logger.Warn("malformed task", slog.String("stream_id", msg.ID), slog.Any("error", err))
		return
	}
	runTask(ctx, d.logger, d.handler, task)
}

// Close stops the consume loop, bounded by ctx. Pending stream entries
// stay queued for the next instance.
func (d *RedisDispatcher) Close(ctx context.Context) error {
	d.cancel()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
