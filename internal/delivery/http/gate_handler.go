package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vogiaan1904/rediclaim/internal/service"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

// GateHandler handles admission queue HTTP requests.
type GateHandler struct {
	gateSvc service.GateService
	l       logger.Logger
}

func NewGateHandler(gateSvc service.GateService, l logger.Logger) *GateHandler {
	return &GateHandler{
		gateSvc: gateSvc,
		l:       l,
	}
}

type enqueueRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// Enqueue handles POST /api/v1/events/:eventId/enqueue
func (h *GateHandler) Enqueue(c *gin.Context) {
	eventID := c.Param("eventId")

	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	out, err := h.gateSvc.Enqueue(c.Request.Context(), eventID, req.UserID)
	if err != nil {
		h.l.Errorf(c.Request.Context(), "delivery.http.GateHandler.Enqueue: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to enqueue",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, out)
}

// GetStatus handles GET /api/v1/events/:eventId/status
func (h *GateHandler) GetStatus(c *gin.Context) {
	eventID := c.Param("eventId")

	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "userId is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	out, err := h.gateSvc.GetStatus(c.Request.Context(), eventID, userID)
	if err != nil {
		h.l.Errorf(c.Request.Context(), "delivery.http.GateHandler.GetStatus: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to get queue status",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, out)
}
