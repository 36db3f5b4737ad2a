package domain

// AIStatus is the enrichment lifecycle of a bookmark.
//
//	PENDING -> PROCESSING -> COMPLETED | FAILED
//
// SKIPPED is terminal and only reachable at creation with AI disabled.
type AIStatus string

const (
	StatusSkipped    AIStatus = "SKIPPED"
	StatusPending    AIStatus = "PENDING"
	StatusProcessing AIStatus = "PROCESSING"
	StatusCompleted  AIStatus = "COMPLETED"
	StatusFailed     AIStatus = "FAILED"
)

// CanTransition reports whether a bookmark may move from one status to
// another. Every store guard follows it.
// PROCESSING -> PROCESSING is allowed because delivery is at-least-once,
// PENDING -> PENDING because re-arming a queued bookmark is a no-op.
func CanTransition(from, to AIStatus) bool {
	switch to {
	case StatusProcessing:
		return from == StatusPending || from == StatusProcessing ||
			from == StatusCompleted || from == StatusFailed
	case StatusCompleted, StatusFailed:
		return from == StatusProcessing
	case StatusPending:
		return from == StatusPending || from == StatusCompleted || from == StatusFailed
	default:
		return false
	}
}

var lifecycle = []AIStatus{StatusSkipped, StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// SourcesOf lists, in lifecycle order, the statuses CanTransition accepts
// for a move to to.
func SourcesOf(to AIStatus) []AIStatus {
	var out []AIStatus
	for _, from := range lifecycle {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
