package kafka

import (
	"encoding/json"
	"time"
)

// Topic names
const (
	// TopicIssueRequests carries admitted gate batches to the issuer.
	// Messages are keyed by event id so one event's requests stay ordered.
	TopicIssueRequests = "ISSUE_REQUESTS"
	// TopicCouponIssued carries finalized allocations to the durability
	// worker. Keyed by coupon id; ordering here is audit-only, the stock
	// decision is already final upstream.
	TopicCouponIssued = "COUPON_ISSUED"
	// TopicCouponIssuedDLQ holds issuance events that exhausted retries or
	// were classified non-retryable.
	TopicCouponIssuedDLQ = "COUPON_ISSUED_DLQ"
)

// IssueRequestMessage is one admitted requester, dispatched by the gate.
// An event sells exactly one coupon, so the event id doubles as the coupon id
// on the issuer side.
type IssueRequestMessage struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Ticket    int64     `json:"ticket"`
	Timestamp time.Time `json:"timestamp"`
}

// CouponIssuedEvent records a successful allocation for durable persistence.
type CouponIssuedEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CouponID  string    `json:"coupon_id"`
	IssuedAt  time.Time `json:"issued_at"`
	Timestamp time.Time `json:"timestamp"`
}

// DeadLetterMessage wraps a message that could not be processed.
type DeadLetterMessage struct {
	ID            string          `json:"id"`
	OriginalTopic string          `json:"original_topic"`
	MessageKey    string          `json:"message_key,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	ErrorMessage  string          `json:"error_message"`
	RetryCount    int             `json:"retry_count"`
	FailedAt      time.Time       `json:"failed_at"`
}
