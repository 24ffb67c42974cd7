package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/rediclaim/internal/dispatcher"
	apperrors "github.com/vogiaan1904/rediclaim/internal/errors"
	"github.com/vogiaan1904/rediclaim/internal/models"
	"github.com/vogiaan1904/rediclaim/internal/service"
	pkgLog "github.com/vogiaan1904/rediclaim/pkg/logger"
)

// MockIssuerService is a mock implementation of service.IssuerService
type MockIssuerService struct {
	mock.Mock
}

func (m *MockIssuerService) AllocateAndIssue(ctx context.Context, userID, couponID string) (models.IssueResult, error) {
	args := m.Called(ctx, userID, couponID)
	return args.Get(0).(models.IssueResult), args.Error(1)
}

func (m *MockIssuerService) ProcessIssueRequest(ctx context.Context, eventID, userID string) (models.IssueResult, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(models.IssueResult), args.Error(1)
}

func (m *MockIssuerService) CreateCoupon(ctx context.Context, inp service.CreateCouponInput) (*models.Coupon, error) {
	args := m.Called(ctx, inp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockIssuerService) GetCoupon(ctx context.Context, id string) (*models.Coupon, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockIssuerService) ListValidCoupons(ctx context.Context) ([]models.Coupon, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Coupon), args.Error(1)
}

func (m *MockIssuerService) ListUserCoupons(ctx context.Context, userID string) ([]models.IssuedCoupon, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IssuedCoupon), args.Error(1)
}

func setupIssuerRouter(svc service.IssuerService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewIssuerRouter(NewIssuerHandler(svc, pkgLog.InitializeTestZapLogger()))
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()

	req, _ := http.NewRequest(http.MethodGet, path, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIssuerHandler_IssueCoupon_ResultMapping(t *testing.T) {
	tests := []struct {
		result models.IssueResult
		status int
	}{
		{models.IssueResultSuccess, http.StatusOK},
		{models.IssueResultAlreadyIssued, http.StatusConflict},
		{models.IssueResultOutOfStock, http.StatusConflict},
		{models.IssueResultNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(string(tt.result), func(t *testing.T) {
			mockSvc := new(MockIssuerService)
			router := setupIssuerRouter(mockSvc)

			mockSvc.On("AllocateAndIssue", mock.Anything, "alice", "coupon-1").Return(tt.result, nil)

			w := postJSON(t, router, "/api/v1/coupons/coupon-1/issue", map[string]string{"userId": "alice"})
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestIssuerHandler_IssueCoupon_ServiceError(t *testing.T) {
	mockSvc := new(MockIssuerService)
	router := setupIssuerRouter(mockSvc)

	mockSvc.On("AllocateAndIssue", mock.Anything, "alice", "coupon-1").
		Return(models.IssueResult(""), errors.New("redis down"))

	w := postJSON(t, router, "/api/v1/coupons/coupon-1/issue", map[string]string{"userId": "alice"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIssuerHandler_CreateCoupon(t *testing.T) {
	mockSvc := new(MockIssuerService)
	router := setupIssuerRouter(mockSvc)

	mockSvc.On("CreateCoupon", mock.Anything, service.CreateCouponInput{
		Name:      "Launch Discount",
		Quantity:  100,
		CreatorID: "admin-1",
	}).Return(&models.Coupon{ID: "coupon-1", Name: "Launch Discount", RemainingCount: 100}, nil)

	w := postJSON(t, router, "/api/v1/coupons", map[string]any{
		"name":      "Launch Discount",
		"quantity":  100,
		"creatorId": "admin-1",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestIssuerHandler_CreateCoupon_RejectsZeroQuantity(t *testing.T) {
	router := setupIssuerRouter(new(MockIssuerService))

	w := postJSON(t, router, "/api/v1/coupons", map[string]any{
		"name":      "Bad",
		"quantity":  0,
		"creatorId": "admin-1",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssuerHandler_GetCoupon(t *testing.T) {
	mockSvc := new(MockIssuerService)
	router := setupIssuerRouter(mockSvc)

	mockSvc.On("GetCoupon", mock.Anything, "coupon-1").
		Return(&models.Coupon{ID: "coupon-1", Name: "Launch Discount", RemainingCount: 42}, nil)

	w := getJSON(t, router, "/api/v1/coupons/coupon-1")
	assert.Equal(t, http.StatusOK, w.Code)

	var out models.Coupon
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "coupon-1", out.ID)
	assert.Equal(t, int64(42), out.RemainingCount)
}

func TestIssuerHandler_GetCoupon_NotFound(t *testing.T) {
	mockSvc := new(MockIssuerService)
	router := setupIssuerRouter(mockSvc)

	mockSvc.On("GetCoupon", mock.Anything, "missing-coupon").
		Return(nil, apperrors.ErrCouponNotFound)

	w := getJSON(t, router, "/api/v1/coupons/missing-coupon")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIssuerHandler_ReceiveIssueRequests(t *testing.T) {
	mockSvc := new(MockIssuerService)
	router := setupIssuerRouter(mockSvc)

	mockSvc.On("ProcessIssueRequest", mock.Anything, "event-1", "alice").
		Return(models.IssueResultSuccess, nil)
	mockSvc.On("ProcessIssueRequest", mock.Anything, "event-1", "bob").
		Return(models.IssueResult(""), errors.New("redis down"))

	w := postJSON(t, router, "/api/v1/gate/issue-requests", dispatcher.IssueRequestBatch{
		EventID: "event-1",
		Entries: []models.DispatchEntry{
			{UserID: "alice", Ticket: 1},
			{UserID: "bob", Ticket: 2},
		},
	})

	// Partial failure is still a 200: failed entries recover via the sweep.
	assert.Equal(t, http.StatusOK, w.Code)

	var out map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 2, out["received"])
	assert.Equal(t, 1, out["failed"])

	mockSvc.AssertExpectations(t)
}
