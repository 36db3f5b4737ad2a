package queue

import "strconv"

const (
	// DefaultPrefix is the key prefix used when none is configured
	DefaultPrefix = "marks:queue"
)

// keys holds the Redis keys of one queue as seen by one worker.
type keys struct {
	prefix string
	worker string
}

// ReadyKey returns the list of jobs waiting for a worker
func (k keys) ReadyKey() string {
	return k.prefix + ":ready"
}

// ProcessingKey returns the list of jobs held by this worker
func (k keys) ProcessingKey() string {
	return k.prefix + ":processing:" + k.worker
}

// QueuedKey returns the dedupe marker of a bookmark
func (k keys) QueuedKey(bookmarkID int64) string {
	return k.prefix + ":queued:" + strconv.FormatInt(bookmarkID, 10)
}
