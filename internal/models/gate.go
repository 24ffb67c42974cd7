package models

// EnqueueStatus reports whether an enqueue call created a new entry or found
// an existing one. Duplicate enqueue is a normal outcome, not an error.
type EnqueueStatus string

const (
	EnqueueStatusEnqueued        EnqueueStatus = "ENQUEUED"
	EnqueueStatusAlreadyEnqueued EnqueueStatus = "ALREADY_ENQUEUED"
)

type QueueStatus string

const (
	QueueStatusWaiting    QueueStatus = "WAITING"
	QueueStatusProcessing QueueStatus = "PROCESSING"
	// QueueStatusUnknown covers already issued, timed out and never entered.
	// The gate cannot tell these apart; post-issuance state lives downstream.
	QueueStatusUnknown QueueStatus = "UNKNOWN"
)

// DispatchEntry is one admitted requester popped from the queue. Ticket is the
// original monotonically increasing ticket number, preserved across the
// queue -> processing transition.
type DispatchEntry struct {
	UserID string `json:"user_id"`
	Ticket int64  `json:"ticket"`
}
