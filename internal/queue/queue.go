// Package queue is a reliable Redis list queue for enrichment jobs.
//
// Producers LPUSH onto the ready list; a worker BLMOVEs the oldest job into
// its own processing list and removes it on Ack. A crashed worker's
// processing list is moved back by Recover on its next start. A bookmark
// has at most one job queued or in flight, tracked by an expiring marker
// key so a lost Ack cannot block it forever.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

const defaultDedupeTTL = 15 * time.Minute

// enqueueScript sets the dedupe marker and pushes the job atomically.
// KEYS[1] ready list, KEYS[2] marker; ARGV[1] payload, ARGV[2] ttl seconds.
var enqueueScript = redis.NewScript(`
if redis.call('SET', KEYS[2], '1', 'NX', 'EX', ARGV[2]) then
	redis.call('LPUSH', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// Options configures a Queue.
type Options struct {
	Prefix    string        // key prefix, DefaultPrefix when empty
	Worker    string        // names this consumer's processing list
	DedupeTTL time.Duration // lifetime of the per-bookmark marker
}

// Queue is safe for concurrent use.
type Queue struct {
	client    *redis.Client
	keys      keys
	dedupeTTL time.Duration
}

// Delivery is one dequeued job. Payload is the raw list element; it is the
// handle used by Ack and Nack. DecodeErr is set when Payload is not a valid job.
type Delivery struct {
	Job       domain.Job
	Payload   string
	DecodeErr error
}

func New(client *redis.Client, opts Options) *Queue {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Worker == "" {
		opts.Worker = "default"
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = defaultDedupeTTL
	}
	return &Queue{
		client:    client,
		keys:      keys{prefix: opts.Prefix, worker: opts.Worker},
		dedupeTTL: opts.DedupeTTL,
	}
}

// Enqueue pushes job unless one for the same bookmark is already queued or
// in flight. It reports whether the job was pushed.
func (q *Queue) Enqueue(ctx context.Context, job domain.Job) (bool, error) {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := job.Encode()
	if err != nil {
		return false, fmt.Errorf("failed to encode job: %w", err)
	}

	ttl := int64(q.dedupeTTL / time.Second)
	if ttl < 1 {
		ttl = 1
	}

	pushed, err := enqueueScript.Run(ctx, q.client,
		[]string{q.keys.ReadyKey(), q.keys.QueuedKey(job.BookmarkID)},
		string(payload), ttl,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to enqueue bookmark %d: %w", job.BookmarkID, err)
	}
	return pushed == 1, nil
}

// Dequeue blocks up to timeout for the next job. It returns (nil, nil) when
// the timeout elapses with nothing to do.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	payload, err := q.client.BLMove(ctx, q.keys.ReadyKey(), q.keys.ProcessingKey(), "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	d := &Delivery{Payload: payload}
	d.Job, d.DecodeErr = domain.DecodeJob([]byte(payload))
	return d, nil
}

// Ack removes a finished delivery and releases its bookmark marker.
func (q *Queue) Ack(ctx context.Context, d *Delivery) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.keys.ProcessingKey(), 1, d.Payload)
	if d.DecodeErr == nil && d.Job.BookmarkID > 0 {
		pipe.Del(ctx, q.keys.QueuedKey(d.Job.BookmarkID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack puts a delivery back at the tail of the ready list. The marker is
// kept and refreshed: the job is still queued.
func (q *Queue) Nack(ctx context.Context, d *Delivery) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.keys.ProcessingKey(), 1, d.Payload)
	pipe.LPush(ctx, q.keys.ReadyKey(), d.Payload)
	if d.DecodeErr == nil && d.Job.BookmarkID > 0 {
		pipe.Expire(ctx, q.keys.QueuedKey(d.Job.BookmarkID), q.dedupeTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack job: %w", err)
	}
	return nil
}

// Recover moves everything left in this worker's processing list back to
// the ready list, next in line. It returns the number of jobs moved.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.keys.ProcessingKey(), q.keys.ReadyKey(), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to recover jobs: %w", err)
		}
		moved++
	}
}

// Depth returns the number of jobs waiting in the ready list.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.keys.ReadyKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return n, nil
}

// InFlight returns the number of jobs held by this worker.
func (q *Queue) InFlight(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.keys.ProcessingKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read in-flight jobs: %w", err)
	}
	return n, nil
}

// Ping checks the Redis connection.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
