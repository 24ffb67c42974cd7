package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/rediclaim/internal/models"
	pkgLog "github.com/vogiaan1904/rediclaim/pkg/logger"
)

func TestStockReconciler_FoldsBackDivergedCount(t *testing.T) {
	ctx := context.Background()
	coupons := newFakeCouponRepo()
	stock := newFakeStockRepo()

	require.NoError(t, coupons.Create(ctx, &models.Coupon{ID: "coupon-1", Name: "Sale", RemainingCount: 10}))
	require.NoError(t, stock.InitStock(ctx, "coupon-1", 4))

	r := NewStockReconciler(coupons, stock, time.Minute, pkgLog.InitializeTestZapLogger())
	require.NoError(t, r.ReconcileAll(ctx))

	stored, err := coupons.GetByID(ctx, "coupon-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stored.RemainingCount)
}

func TestStockReconciler_SkipsMatchingAndUninitialized(t *testing.T) {
	ctx := context.Background()
	coupons := newFakeCouponRepo()
	stock := newFakeStockRepo()

	// Counter matches the row: no write expected.
	require.NoError(t, coupons.Create(ctx, &models.Coupon{ID: "coupon-1", RemainingCount: 7}))
	require.NoError(t, stock.InitStock(ctx, "coupon-1", 7))

	// No counter at all: row must stay untouched.
	require.NoError(t, coupons.Create(ctx, &models.Coupon{ID: "coupon-2", RemainingCount: 3}))

	r := NewStockReconciler(coupons, stock, time.Minute, pkgLog.InitializeTestZapLogger())
	require.NoError(t, r.ReconcileAll(ctx))

	assert.Empty(t, coupons.updates)

	stored, err := coupons.GetByID(ctx, "coupon-2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.RemainingCount)
}

func TestStockReconciler_StartStop(t *testing.T) {
	ctx := context.Background()
	r := NewStockReconciler(newFakeCouponRepo(), newFakeStockRepo(), time.Minute, pkgLog.InitializeTestZapLogger())

	require.NoError(t, r.Start(ctx))
	assert.Error(t, r.Start(ctx))
	require.NoError(t, r.Stop())
	assert.Error(t, r.Stop())
}
