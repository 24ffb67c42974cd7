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
	"github.com/vogiaan1904/rediclaim/internal/models"
	"github.com/vogiaan1904/rediclaim/internal/service"
	pkgLog "github.com/vogiaan1904/rediclaim/pkg/logger"
)

// MockGateService is a mock implementation of service.GateService
type MockGateService struct {
	mock.Mock
}

func (m *MockGateService) Enqueue(ctx context.Context, eventID, userID string) (service.EnqueueOutput, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(service.EnqueueOutput), args.Error(1)
}

func (m *MockGateService) GetStatus(ctx context.Context, eventID, userID string) (service.QueueStatusOutput, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(service.QueueStatusOutput), args.Error(1)
}

func (m *MockGateService) DispatchOnce(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockGateService) SweepStale(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func setupGateRouter(svc service.GateService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewGateRouter(NewGateHandler(svc, pkgLog.InitializeTestZapLogger()))
}

func TestGateHandler_Enqueue_Success(t *testing.T) {
	mockSvc := new(MockGateService)
	router := setupGateRouter(mockSvc)

	mockSvc.On("Enqueue", mock.Anything, "event-1", "alice").Return(service.EnqueueOutput{
		Status: models.EnqueueStatusEnqueued,
		Rank:   0,
	}, nil)

	body, _ := json.Marshal(map[string]string{"userId": "alice"})
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/events/event-1/enqueue", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var out service.EnqueueOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, models.EnqueueStatusEnqueued, out.Status)
	assert.Equal(t, int64(0), out.Rank)

	mockSvc.AssertExpectations(t)
}

func TestGateHandler_Enqueue_MissingUserID(t *testing.T) {
	router := setupGateRouter(new(MockGateService))

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/events/event-1/enqueue", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGateHandler_Enqueue_ServiceError(t *testing.T) {
	mockSvc := new(MockGateService)
	router := setupGateRouter(mockSvc)

	mockSvc.On("Enqueue", mock.Anything, "event-1", "alice").
		Return(service.EnqueueOutput{}, errors.New("redis down"))

	body, _ := json.Marshal(map[string]string{"userId": "alice"})
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/events/event-1/enqueue", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGateHandler_GetStatus_Waiting(t *testing.T) {
	mockSvc := new(MockGateService)
	router := setupGateRouter(mockSvc)

	rank := int64(42)
	mockSvc.On("GetStatus", mock.Anything, "event-1", "alice").Return(service.QueueStatusOutput{
		Status: models.QueueStatusWaiting,
		Rank:   &rank,
	}, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/events/event-1/status?userId=alice", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var out service.QueueStatusOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, models.QueueStatusWaiting, out.Status)
	require.NotNil(t, out.Rank)
	assert.Equal(t, int64(42), *out.Rank)
}

func TestGateHandler_GetStatus_MissingUserID(t *testing.T) {
	router := setupGateRouter(new(MockGateService))

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/events/event-1/status", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
