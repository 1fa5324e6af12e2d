package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type WorkerOptions struct {
	Stream   string
	Group    string
	Consumer string
	// Batch is the XREADGROUP COUNT.
	Batch int64
	// Block is how long one read waits for new entries.
	Block time.Duration
	// RetryEvery spaces reads after a failed one.
	RetryEvery time.Duration
}

// Worker consumes the task stream through a consumer group. Every entry is
// acknowledged after one attempt whatever the outcome.
type Worker struct {
	rdb     redis.Cmdable
	handler Handler
	log     *slog.Logger
	opts    WorkerOptions
}

func NewWorker(rdb redis.Cmdable, handler Handler, log *slog.Logger, opts WorkerOptions) *Worker {
	if opts.Batch <= 0 {
		opts.Batch = 10
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		rdb:     rdb,
		handler: handler,
		log:     log.With(slog.String("component", "worker"), slog.String("stream", opts.Stream)),
		opts:    opts,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.ensureGroup(ctx); err != nil {
		return err
	}
	w.log.Info("worker started", slog.String("group", w.opts.Group), slog.String("consumer", w.opts.Consumer))
	retry := rate.NewLimiter(rate.Every(w.opts.RetryEvery), 1)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := w.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error("read stream", slog.Any("error", err))
			if err := retry.Wait(ctx); err != nil {
				return nil
			}
		}
	}
}

func (w *Worker) ensureGroup(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, w.opts.Stream, w.opts.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("tasks: create group: %w", err)
	}
	return nil
}

// poll reads one batch, runs it and acks it. It returns how many entries
// were processed.
func (w *Worker) poll(ctx context.Context) (int, error) {
	streams, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.opts.Group,
		Consumer: w.opts.Consumer,
		Streams:  []string{w.opts.Stream, ">"},
		Count:    w.opts.Batch,
		Block:    w.opts.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			w.process(ctx, msg)
			if err := w.rdb.XAck(ctx, w.opts.Stream, w.opts.Group, msg.ID).Err(); err != nil {
				w.log.Error("ack", slog.String("id", msg.ID), slog.Any("error", err))
			}
			n++
		}
	}
	return n, nil
}

func (w *Worker) process(ctx context.Context, msg redis.XMessage) {
	job, err := decodeMessage(msg)
	if err != nil {
		w.log.Error("bad stream entry", slog.String("id", msg.ID), slog.Any("error", err))
		return
	}
	log := w.log.With(slog.String("id", msg.ID), slog.String("kind", string(job.Kind)))
	if err := w.handler.Execute(ctx, job); err != nil {
		log.Error("job failed", slog.Any("error", err))
		return
	}
	log.Debug("job done")
}

func decodeMessage(msg redis.XMessage) (Job, error) {
	kind, ok := msg.Values[fieldKind].(string)
	if !ok || kind == "" {
		return Job{}, errors.New("missing kind")
	}
	payload, _ := msg.Values[fieldPayload].(string)
	return Job{Kind: Kind(kind), Payload: []byte(payload)}, nil
}
