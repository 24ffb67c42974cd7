package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vogiaan1904/rediclaim/internal/dispatcher"
	apperrors "github.com/vogiaan1904/rediclaim/internal/errors"
	"github.com/vogiaan1904/rediclaim/internal/models"
	"github.com/vogiaan1904/rediclaim/internal/service"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

// IssuerHandler handles coupon HTTP requests.
type IssuerHandler struct {
	issuerSvc service.IssuerService
	l         logger.Logger
}

func NewIssuerHandler(issuerSvc service.IssuerService, l logger.Logger) *IssuerHandler {
	return &IssuerHandler{
		issuerSvc: issuerSvc,
		l:         l,
	}
}

type createCouponRequest struct {
	Name      string `json:"name" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	CreatorID string `json:"creatorId" binding:"required"`
}

// CreateCoupon handles POST /api/v1/coupons
func (h *IssuerHandler) CreateCoupon(c *gin.Context) {
	var req createCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	coupon, err := h.issuerSvc.CreateCoupon(c.Request.Context(), service.CreateCouponInput{
		Name:      req.Name,
		Quantity:  req.Quantity,
		CreatorID: req.CreatorID,
	})
	if err != nil {
		h.l.Errorf(c.Request.Context(), "delivery.http.IssuerHandler.CreateCoupon: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to create coupon",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusCreated, coupon)
}

// GetCoupon handles GET /api/v1/coupons/:couponId
func (h *IssuerHandler) GetCoupon(c *gin.Context) {
	couponID := c.Param("couponId")

	coupon, err := h.issuerSvc.GetCoupon(c.Request.Context(), couponID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCouponNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "coupon not found",
				Code:  "COUPON_NOT_FOUND",
			})
			return
		}

		h.l.Errorf(c.Request.Context(), "delivery.http.IssuerHandler.GetCoupon: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to get coupon",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, coupon)
}

// ListCoupons handles GET /api/v1/coupons
func (h *IssuerHandler) ListCoupons(c *gin.Context) {
	coupons, err := h.issuerSvc.ListValidCoupons(c.Request.Context())
	if err != nil {
		h.l.Errorf(c.Request.Context(), "delivery.http.IssuerHandler.ListCoupons: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list coupons",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

type issueCouponRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// IssueCoupon handles POST /api/v1/coupons/:couponId/issue
func (h *IssuerHandler) IssueCoupon(c *gin.Context) {
	couponID := c.Param("couponId")

	var req issueCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	result, err := h.issuerSvc.AllocateAndIssue(c.Request.Context(), req.UserID, couponID)
	if err != nil {
		h.l.Errorf(c.Request.Context(), "delivery.http.IssuerHandler.IssueCoupon: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to issue coupon",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	switch result {
	case models.IssueResultSuccess:
		c.JSON(http.StatusOK, gin.H{"result": result})
	case models.IssueResultAlreadyIssued:
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "coupon already issued to this user",
			Code:  string(result),
		})
	case models.IssueResultOutOfStock:
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "coupon is out of stock",
			Code:  string(result),
		})
	case models.IssueResultNotFound:
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "coupon not found",
			Code:  string(result),
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "unexpected issue result",
			Code:  "INTERNAL_ERROR",
		})
	}
}

// ListUserCoupons handles GET /api/v1/users/:userId/coupons
func (h *IssuerHandler) ListUserCoupons(c *gin.Context) {
	userID := c.Param("userId")

	// Unknown users simply have no issuance history; there is no user
	// store to distinguish them from known-but-empty ones.
	issued, err := h.issuerSvc.ListUserCoupons(c.Request.Context(), userID)
	if err != nil {
		h.l.Errorf(c.Request.Context(), "delivery.http.IssuerHandler.ListUserCoupons: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list user coupons",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coupons": issued})
}

// ReceiveIssueRequests handles POST /api/v1/gate/issue-requests, the sink for
// synchronous gate dispatch. Each entry resolves independently; one bad user
// does not fail the batch.
func (h *IssuerHandler) ReceiveIssueRequests(c *gin.Context) {
	var batch dispatcher.IssueRequestBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	var failed int
	for _, entry := range batch.Entries {
		if _, err := h.issuerSvc.ProcessIssueRequest(c.Request.Context(), batch.EventID, entry.UserID); err != nil {
			h.l.Errorf(c.Request.Context(), "delivery.http.IssuerHandler.ReceiveIssueRequests: user %s: %v",
				entry.UserID, err)
			failed++
		}
	}

	// Failed entries stay in the gate's processing set and come back via
	// the stale sweep, so a partial batch is still a 200.
	c.JSON(http.StatusOK, gin.H{
		"received": len(batch.Entries),
		"failed":   failed,
	})
}
