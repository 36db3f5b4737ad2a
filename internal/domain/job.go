package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Job is one unit of enrichment work for a single bookmark.
type Job struct {
	BookmarkID    int64     `json:"bookmark_id"`
	UserID        int64     `json:"user_id"`
	CorrelationID *string   `json:"correlation_id"`
	EnqueuedAt    time.Time `json:"enqueued_at,omitempty"`
}

// NewJob builds a job. An empty correlationID is encoded as null.
func NewJob(bookmarkID, userID int64, correlationID string) Job {
	j := Job{BookmarkID: bookmarkID, UserID: userID, EnqueuedAt: time.Now().UTC()}
	if correlationID != "" {
		j.CorrelationID = &correlationID
	}
	return j
}

// Correlation returns the correlation id, or "" when absent.
func (j Job) Correlation() string {
	if j.CorrelationID == nil {
		return ""
	}
	return *j.CorrelationID
}

// Encode serializes the job payload.
func (j Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeJob parses and validates a job payload.
func DecodeJob(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("failed to decode job: %w", err)
	}
	if j.BookmarkID <= 0 {
		return Job{}, errors.New("job has no bookmark_id")
	}
	return j, nil
}
