package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafka "github.com/vogiaan1904/rediclaim/internal/delivery/kafka"
	"github.com/vogiaan1904/rediclaim/internal/models"
	"github.com/vogiaan1904/rediclaim/internal/service"
	pkgLog "github.com/vogiaan1904/rediclaim/pkg/logger"
)

type fakeIssuedStore struct {
	mu         sync.Mutex
	inserts    int
	failBefore int // attempts that fail before inserts start succeeding
	failWith   error
}

func (f *fakeIssuedStore) Insert(ctx context.Context, userID, couponID string, issuedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inserts++
	if f.inserts <= f.failBefore {
		return f.failWith
	}

	return nil
}

func (f *fakeIssuedStore) ListByUser(ctx context.Context, userID string) ([]models.IssuedCoupon, error) {
	return nil, nil
}

type fakeStockStore struct {
	mu          sync.Mutex
	compensated int
}

func (f *fakeStockStore) InitStock(ctx context.Context, couponID string, quantity int64) error {
	return nil
}

func (f *fakeStockStore) GetStock(ctx context.Context, couponID string) (int64, error) {
	return 0, nil
}

func (f *fakeStockStore) AllocateAndIssue(ctx context.Context, userID, couponID string) (models.IssueResult, error) {
	return models.IssueResultSuccess, nil
}

func (f *fakeStockStore) Compensate(ctx context.Context, userID, couponID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.compensated++
	return nil
}

type fakeProducer struct {
	mu             sync.Mutex
	issued         []kafka.CouponIssuedEvent
	deadLetters    []kafka.DeadLetterMessage
	failDeadLetter error
}

func (f *fakeProducer) PublishCouponIssued(ctx context.Context, event kafka.CouponIssuedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.issued = append(f.issued, event)
	return nil
}

func (f *fakeProducer) PublishDeadLetter(ctx context.Context, msg kafka.DeadLetterMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failDeadLetter != nil {
		return f.failDeadLetter
	}

	f.deadLetters = append(f.deadLetters, msg)
	return nil
}

func (f *fakeProducer) Close() error {
	return nil
}

func duplicateErr() error {
	return fmt.Errorf("insert failed: %w", &pgconn.PgError{Code: "23505"})
}

func testEvent() kafka.CouponIssuedEvent {
	return kafka.CouponIssuedEvent{
		ID:       "evt-1",
		UserID:   "alice",
		CouponID: "coupon-1",
		IssuedAt: time.Now(),
	}
}

func newTestRecorder(issued *fakeIssuedStore, stock *fakeStockStore, prod *fakeProducer) *IssuanceRecorder {
	return NewIssuanceRecorder(issued, stock, prod, 3, time.Millisecond, pkgLog.InitializeTestZapLogger())
}

func TestIssuanceRecorder_RecordsOnFirstAttempt(t *testing.T) {
	issued := &fakeIssuedStore{}
	stock := &fakeStockStore{}
	prod := &fakeProducer{}

	err := newTestRecorder(issued, stock, prod).Handle(context.Background(), testEvent())
	require.NoError(t, err)

	assert.Equal(t, 1, issued.inserts)
	assert.Equal(t, 0, stock.compensated)
	assert.Empty(t, prod.deadLetters)
}

func TestIssuanceRecorder_DuplicateIsNoOp(t *testing.T) {
	issued := &fakeIssuedStore{failBefore: 10, failWith: duplicateErr()}
	stock := &fakeStockStore{}
	prod := &fakeProducer{}

	err := newTestRecorder(issued, stock, prod).Handle(context.Background(), testEvent())
	require.NoError(t, err)

	// A redelivered event must change nothing: no retry, no rollback.
	assert.Equal(t, 1, issued.inserts)
	assert.Equal(t, 0, stock.compensated)
	assert.Empty(t, prod.deadLetters)
}

func TestIssuanceRecorder_TransientFailureRetries(t *testing.T) {
	issued := &fakeIssuedStore{failBefore: 2, failWith: errors.New("connection reset")}
	stock := &fakeStockStore{}
	prod := &fakeProducer{}

	err := newTestRecorder(issued, stock, prod).Handle(context.Background(), testEvent())
	require.NoError(t, err)

	assert.Equal(t, 3, issued.inserts)
	assert.Equal(t, 0, stock.compensated)
	assert.Empty(t, prod.deadLetters)
}

func TestIssuanceRecorder_ExhaustionDeadLettersAndCompensates(t *testing.T) {
	issued := &fakeIssuedStore{failBefore: 100, failWith: errors.New("database down")}
	stock := &fakeStockStore{}
	prod := &fakeProducer{}

	err := newTestRecorder(issued, stock, prod).Handle(context.Background(), testEvent())
	require.NoError(t, err, "exhaustion resolves the message, it must not redeliver")

	assert.Equal(t, 3, issued.inserts)
	assert.Equal(t, 1, stock.compensated, "the seat returns to the pool exactly once")

	require.Len(t, prod.deadLetters, 1)
	dlq := prod.deadLetters[0]
	assert.Equal(t, kafka.TopicCouponIssued, dlq.OriginalTopic)
	assert.Equal(t, "coupon-1", dlq.MessageKey)
	assert.Equal(t, 3, dlq.RetryCount)
	assert.Contains(t, dlq.ErrorMessage, "database down")
}

type fakeIssuerService struct {
	result models.IssueResult
	err    error

	mu    sync.Mutex
	calls []string
}

func (f *fakeIssuerService) AllocateAndIssue(ctx context.Context, userID, couponID string) (models.IssueResult, error) {
	return f.result, f.err
}

func (f *fakeIssuerService) ProcessIssueRequest(ctx context.Context, eventID, userID string) (models.IssueResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, eventID+"/"+userID)
	f.mu.Unlock()

	return f.result, f.err
}

func (f *fakeIssuerService) CreateCoupon(ctx context.Context, inp service.CreateCouponInput) (*models.Coupon, error) {
	return nil, nil
}

func (f *fakeIssuerService) GetCoupon(ctx context.Context, id string) (*models.Coupon, error) {
	return nil, nil
}

func (f *fakeIssuerService) ListValidCoupons(ctx context.Context) ([]models.Coupon, error) {
	return nil, nil
}

func (f *fakeIssuerService) ListUserCoupons(ctx context.Context, userID string) ([]models.IssuedCoupon, error) {
	return nil, nil
}

func TestIssueRequestHandler_ResolvesRequest(t *testing.T) {
	svc := &fakeIssuerService{result: models.IssueResultSuccess}
	h := NewIssueRequestHandler(svc, pkgLog.InitializeTestZapLogger())

	err := h.Handle(context.Background(), kafka.IssueRequestMessage{EventID: "event-1", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"event-1/alice"}, svc.calls)
}

func TestIssueRequestHandler_PropagatesTransientError(t *testing.T) {
	svc := &fakeIssuerService{err: errors.New("redis unavailable")}
	h := NewIssueRequestHandler(svc, pkgLog.InitializeTestZapLogger())

	err := h.Handle(context.Background(), kafka.IssueRequestMessage{EventID: "event-1", UserID: "alice"})
	assert.Error(t, err, "the message must stay unmarked for redelivery")
}
