package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafka "github.com/vogiaan1904/rediclaim/internal/delivery/kafka"
	"github.com/vogiaan1904/rediclaim/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/rediclaim/internal/models"
	pgrepo "github.com/vogiaan1904/rediclaim/internal/repository/postgres"
	redisrepo "github.com/vogiaan1904/rediclaim/internal/repository/redis"
	"github.com/vogiaan1904/rediclaim/internal/service"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

// IssueRequestHandler resolves gate-admitted requests against the allocator.
type IssueRequestHandler struct {
	issuerSvc service.IssuerService
	l         logger.Logger
}

func NewIssueRequestHandler(issuerSvc service.IssuerService, l logger.Logger) *IssueRequestHandler {
	return &IssueRequestHandler{
		issuerSvc: issuerSvc,
		l:         l,
	}
}

func (h *IssueRequestHandler) Handle(ctx context.Context, req kafka.IssueRequestMessage) error {
	result, err := h.issuerSvc.ProcessIssueRequest(ctx, req.EventID, req.UserID)
	if err != nil {
		// Store unreachable or publish failed: redeliver. The allocator
		// is idempotent, so replaying a partially applied request is
		// safe (a completed allocation resolves to ALREADY_ISSUED).
		return err
	}

	if result != models.IssueResultSuccess {
		h.l.Infof(ctx, "Issue request resolved without issuance: eventID=%s userID=%s result=%s",
			req.EventID, req.UserID, result)
	}

	return nil
}

// IssuanceRecorder is the durability worker: it writes finalized allocations
// to the system of record. It never re-validates stock.
type IssuanceRecorder struct {
	issuedRepo pgrepo.IssuedCouponRepository
	stockRepo  redisrepo.StockRepository
	prod       producer.Producer
	retryMax   int
	backoff    time.Duration
	l          logger.Logger
}

func NewIssuanceRecorder(
	issuedRepo pgrepo.IssuedCouponRepository,
	stockRepo redisrepo.StockRepository,
	prod producer.Producer,
	retryMax int,
	backoff time.Duration,
	l logger.Logger,
) *IssuanceRecorder {
	return &IssuanceRecorder{
		issuedRepo: issuedRepo,
		stockRepo:  stockRepo,
		prod:       prod,
		retryMax:   retryMax,
		backoff:    backoff,
		l:          l,
	}
}

func (h *IssuanceRecorder) Handle(ctx context.Context, event kafka.CouponIssuedEvent) error {
	var lastErr error

	for attempt := 1; attempt <= h.retryMax; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.backoff * time.Duration(attempt-1)):
			}
		}

		err := h.issuedRepo.Insert(ctx, event.UserID, event.CouponID, event.IssuedAt)
		if err == nil {
			h.l.Debugf(ctx, "Issuance recorded: userID=%s couponID=%s", event.UserID, event.CouponID)
			return nil
		}

		if pgrepo.IsDuplicateRecord(err) {
			// At-least-once redelivery lands here; the record already
			// exists and nothing must change.
			h.l.Warnf(ctx, "Duplicate issuance event ignored: userID=%s couponID=%s", event.UserID, event.CouponID)
			return nil
		}

		lastErr = err
		h.l.Warnf(ctx, "Issuance insert failed (attempt %d/%d): %v", attempt, h.retryMax, err)
	}

	// Retries exhausted: the allocation will never reach durable storage.
	// Dead-letter the event for the audit trail, then hand the unit back.
	h.l.Errorf(ctx, "delivery.kafka.consumer.IssuanceRecorder: giving up after %d attempts: %v", h.retryMax, lastErr)

	payload, _ := json.Marshal(event)
	if err := h.prod.PublishDeadLetter(ctx, kafka.DeadLetterMessage{
		ID:            uuid.New().String(),
		OriginalTopic: kafka.TopicCouponIssued,
		MessageKey:    event.CouponID,
		Payload:       payload,
		ErrorMessage:  lastErr.Error(),
		RetryCount:    h.retryMax,
		FailedAt:      time.Now(),
	}); err != nil {
		// Keep the offset unmarked; the whole handling replays.
		return err
	}

	if err := h.stockRepo.Compensate(ctx, event.UserID, event.CouponID); err != nil {
		return err
	}

	return nil
}
