package models

import "time"

// IssueResult is the verdict of the atomic stock allocation. Every value is a
// normal outcome; errors are reserved for the store being unreachable.
type IssueResult string

const (
	IssueResultSuccess       IssueResult = "SUCCESS"
	IssueResultAlreadyIssued IssueResult = "ALREADY_ISSUED"
	IssueResultOutOfStock    IssueResult = "OUT_OF_STOCK"
	IssueResultNotFound      IssueResult = "NOT_FOUND"
)

// Coupon is the durable resource record. RemainingCount is a lagging mirror of
// the Redis stock counter; the reconciler folds the counter back periodically.
type Coupon struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	RemainingCount int64     `json:"remaining_count"`
	CreatorID      string    `json:"creator_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IssuedCoupon is the durable issuance record, unique per (user, coupon).
type IssuedCoupon struct {
	UserID   string    `json:"user_id"`
	CouponID string    `json:"coupon_id"`
	IssuedAt time.Time `json:"issued_at"`
}
