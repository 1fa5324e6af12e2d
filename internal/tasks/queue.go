package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Dispatcher hands jobs to whatever executes them.
type Dispatcher interface {
	Enqueue(ctx context.Context, job Job) error
}

// RedisQueue appends jobs to a Redis stream.
type RedisQueue struct {
	rdb    redis.Cmdable
	stream string
}

func NewRedisQueue(rdb redis.Cmdable, stream string) *RedisQueue {
	return &RedisQueue{rdb: rdb, stream: stream}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: []interface{}{fieldKind, string(job.Kind), fieldPayload, string(job.Payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("tasks: enqueue %s: %w", job.Kind, err)
	}
	return nil
}

// Discard drops every job. Used when no Redis is configured.
type Discard struct {
	log *slog.Logger
}

func NewDiscard(log *slog.Logger) *Discard {
	if log == nil {
		log = slog.Default()
	}
	return &Discard{log: log}
}

func (d *Discard) Enqueue(_ context.Context, job Job) error {
	d.log.Warn("task queue not configured, job dropped", slog.String("kind", string(job.Kind)))
	return nil
}

const (
	fieldKind    = "kind"
	fieldPayload = "payload"
)
