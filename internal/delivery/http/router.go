package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewGateRouter wires the admission queue surface.
func NewGateRouter(gateHandler *GateHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", healthCheck("gate"))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/events/:eventId/enqueue", gateHandler.Enqueue)
		v1.GET("/events/:eventId/status", gateHandler.GetStatus)
	}

	return r
}

// NewIssuerRouter wires the coupon surface, including the synchronous
// dispatch sink used in http dispatch mode.
func NewIssuerRouter(issuerHandler *IssuerHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", healthCheck("issuer"))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/coupons", issuerHandler.CreateCoupon)
		v1.GET("/coupons", issuerHandler.ListCoupons)
		v1.GET("/coupons/:couponId", issuerHandler.GetCoupon)
		v1.POST("/coupons/:couponId/issue", issuerHandler.IssueCoupon)
		v1.GET("/users/:userId/coupons", issuerHandler.ListUserCoupons)
		v1.POST("/gate/issue-requests", issuerHandler.ReceiveIssueRequests)
	}

	return r
}

func healthCheck(svc string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": svc,
		})
	}
}
