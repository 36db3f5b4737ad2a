// Package worker runs the enrichment consumers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/enrichment"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/queue"
)

const settleTimeout = 5 * time.Second

// Queue is the consumer side of queue.Queue.
type Queue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Delivery, error)
	Ack(ctx context.Context, d *queue.Delivery) error
	Nack(ctx context.Context, d *queue.Delivery) error
	Recover(ctx context.Context) (int, error)
	Depth(ctx context.Context) (int64, error)
}

// Processor handles one job. A non-nil error asks for redelivery.
type Processor interface {
	Process(ctx context.Context, job domain.Job) error
}

// Options tunes a Pool.
type Options struct {
	Concurrency int
	PollTimeout time.Duration
	NackDelay   time.Duration
}

// Pool runs Concurrency consumer loops. Each loop handles one job at a
// time, to completion, before dequeuing the next.
type Pool struct {
	queue   Queue
	proc    Processor
	metrics *enrichment.Metrics
	logger  logger.Logger
	opts    Options
}

func NewPool(q Queue, proc Processor, metrics *enrichment.Metrics, log logger.Logger, opts Options) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}
	if opts.NackDelay < 0 {
		opts.NackDelay = 0
	}
	return &Pool{queue: q, proc: proc, metrics: metrics, logger: log, opts: opts}
}

// Run recovers this worker's stranded jobs, then consumes until ctx is
// done. In-flight jobs see the cancellation and are nacked.
func (p *Pool) Run(ctx context.Context) error {
	moved, err := p.queue.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover stranded jobs: %w", err)
	}
	if moved > 0 {
		p.logger.Warn("recovered jobs from a previous run", logger.Int("count", moved))
	}

	p.logger.Info("worker pool started",
		logger.Int("concurrency", p.opts.Concurrency),
		logger.Duration("poll_timeout", p.opts.PollTimeout))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.opts.Concurrency; i++ {
		g.Go(func() error {
			p.consume(gctx, i)
			return nil
		})
	}
	g.Go(func() error {
		p.sampleDepth(gctx)
		return nil
	})

	err = g.Wait()
	p.logger.Info("worker pool stopped")
	return err
}

func (p *Pool) consume(ctx context.Context, id int) {
	log := p.logger.With(logger.Int("consumer", id))

	for ctx.Err() == nil {
		d, err := p.queue.Dequeue(ctx, p.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", logger.Error(err))
			p.pause(ctx)
			continue
		}
		if d == nil {
			continue
		}
		p.handle(ctx, log, d)
	}
}

func (p *Pool) handle(ctx context.Context, log logger.Logger, d *queue.Delivery) {
	settle, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if d.DecodeErr != nil {
		log.Error("dropping malformed job", logger.Error(d.DecodeErr), logger.String("payload", d.Payload))
		if err := p.queue.Ack(settle, d); err != nil {
			log.Error("failed to ack malformed job", logger.Error(err))
		}
		return
	}

	err := p.proc.Process(ctx, d.Job)
	if err == nil {
		if ackErr := p.queue.Ack(settle, d); ackErr != nil {
			log.Error("failed to ack job",
				logger.Int64("bookmark_id", d.Job.BookmarkID),
				logger.Error(ackErr))
		}
		return
	}

	if errors.Is(err, enrichment.ErrInterrupted) {
		log.Info("job interrupted, returning it to the queue", logger.Int64("bookmark_id", d.Job.BookmarkID))
	} else {
		log.Error("job failed, will be redelivered",
			logger.Int64("bookmark_id", d.Job.BookmarkID),
			logger.Error(err))
	}
	if nackErr := p.queue.Nack(settle, d); nackErr != nil {
		log.Error("failed to nack job",
			logger.Int64("bookmark_id", d.Job.BookmarkID),
			logger.Error(nackErr))
	}
	p.pause(ctx)
}

func (p *Pool) sampleDepth(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	ticker := time.NewTicker(p.opts.PollTimeout)
	defer ticker.Stop()
	for {
		if n, err := p.queue.Depth(ctx); err == nil {
			p.metrics.SetQueueDepth(n)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) pause(ctx context.Context) {
	if p.opts.NackDelay == 0 {
		return
	}
	timer := time.NewTimer(p.opts.NackDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
