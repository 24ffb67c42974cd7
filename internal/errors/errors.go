package errors

import "errors"

var (
	ErrCouponNotFound        = errors.New("coupon not found")
	ErrStockNotInitialized   = errors.New("stock not initialized")
	ErrInvalidStockValue     = errors.New("invalid stock value")
	ErrDispatcherUnreachable = errors.New("dispatcher target unreachable")
)
