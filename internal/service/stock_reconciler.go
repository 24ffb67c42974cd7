package service

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/vogiaan1904/rediclaim/internal/errors"
	pgrepo "github.com/vogiaan1904/rediclaim/internal/repository/postgres"
	repo "github.com/vogiaan1904/rediclaim/internal/repository/redis"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

// StockReconciler periodically folds the authoritative Redis counters back
// into the durable coupon rows. Best effort: a failed sweep leaves rows stale
// until the next tick, which is fine because issuance decisions never read
// the durable count.
type StockReconciler interface {
	Start(ctx context.Context) error
	Stop() error
	ReconcileAll(ctx context.Context) error
}

type stockReconciler struct {
	couponRepo pgrepo.CouponRepository
	stockRepo  repo.StockRepository
	interval   time.Duration
	l          logger.Logger

	mu        sync.Mutex
	isRunning bool
	stopCh    chan struct{}
	ticker    *time.Ticker
	wg        sync.WaitGroup
}

func NewStockReconciler(
	couponRepo pgrepo.CouponRepository,
	stockRepo repo.StockRepository,
	interval time.Duration,
	l logger.Logger,
) StockReconciler {
	return &stockReconciler{
		couponRepo: couponRepo,
		stockRepo:  stockRepo,
		interval:   interval,
		l:          l,
		stopCh:     make(chan struct{}),
	}
}

func (r *stockReconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return errors.New("stock reconciler is already running")
	}

	r.l.Infof(ctx, "Starting stock reconciler: interval=%s", r.interval)

	r.isRunning = true
	r.ticker = time.NewTicker(r.interval)

	r.wg.Add(1)
	go r.loop(ctx)

	return nil
}

func (r *stockReconciler) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return errors.New("stock reconciler is not running")
	}

	close(r.stopCh)
	r.ticker.Stop()
	r.wg.Wait()
	r.isRunning = false

	return nil
}

func (r *stockReconciler) loop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			r.l.Info(ctx, "Stock reconciler stopped: context cancelled")
			return
		case <-r.stopCh:
			r.l.Info(ctx, "Stock reconciler stopped")
			return
		case <-r.ticker.C:
			if err := r.ReconcileAll(ctx); err != nil {
				r.l.Errorf(ctx, "service.stock_reconciler.loop: %v", err)
			}
		}
	}
}

func (r *stockReconciler) ReconcileAll(ctx context.Context) error {
	coupons, err := r.couponRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	for _, coupon := range coupons {
		r.reconcileCoupon(ctx, coupon.ID, coupon.RemainingCount)
	}

	return nil
}

func (r *stockReconciler) reconcileCoupon(ctx context.Context, couponID string, dbCount int64) {
	stock, err := r.stockRepo.GetStock(ctx, couponID)
	if err != nil {
		if errors.Is(err, apperrors.ErrStockNotInitialized) {
			// Coupon has no active sale; nothing to fold back.
			r.l.Debugf(ctx, "No stock key for coupon %s", couponID)
			return
		}

		r.l.Errorf(ctx, "service.stock_reconciler.reconcileCoupon: couponID=%s: %v", couponID, err)
		return
	}

	if stock == dbCount {
		return
	}

	if err := r.couponRepo.UpdateRemainingCount(ctx, couponID, stock); err != nil {
		r.l.Errorf(ctx, "service.stock_reconciler.reconcileCoupon: update failed for coupon %s: %v", couponID, err)
		return
	}

	r.l.Infof(ctx, "Stock reconciled: couponID=%s dbCount=%d -> redisCount=%d", couponID, dbCount, stock)
}
