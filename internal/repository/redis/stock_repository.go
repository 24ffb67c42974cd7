package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	apperrors "github.com/vogiaan1904/rediclaim/internal/errors"
	"github.com/vogiaan1904/rediclaim/internal/models"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

// StockRepository is the fast-path allocation engine. AllocateAndIssue and
// Compensate are the only writers of the stock counter and the issued set.
type StockRepository interface {
	InitStock(ctx context.Context, couponID string, quantity int64) error
	GetStock(ctx context.Context, couponID string) (int64, error)
	AllocateAndIssue(ctx context.Context, userID, couponID string) (models.IssueResult, error)
	Compensate(ctx context.Context, userID, couponID string) error
}

type redisStockRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisStockRepository(cli *redis.Client, l logger.Logger) StockRepository {
	return &redisStockRepository{
		cli: cli,
		l:   l,
	}
}

// issueScript performs dedup check, stock check, decrement and issued-set
// insert as one unit. Result codes:
//
//	 1 : issued
//	 0 : out of stock
//	-1 : already issued
//	-2 : stock key absent (coupon unknown to the fast path)
var issueScript = redis.NewScript(`
	local issuedKey = KEYS[1]
	local stockKey = KEYS[2]
	local userId = ARGV[1]

	if redis.call('EXISTS', stockKey) == 0 then
		return -2
	end

	if redis.call('SISMEMBER', issuedKey, userId) == 1 then
		return -1
	end

	local stock = tonumber(redis.call('GET', stockKey))
	if stock <= 0 then
		return 0
	end

	redis.call('DECR', stockKey)
	redis.call('SADD', issuedKey, userId)

	return 1
`)

// compensateScript restores pre-allocation state. The SREM result guards the
// INCR so a redelivered compensation cannot inflate the counter.
var compensateScript = redis.NewScript(`
	local issuedKey = KEYS[1]
	local stockKey = KEYS[2]
	local userId = ARGV[1]

	if redis.call('SREM', issuedKey, userId) == 1 then
		redis.call('INCR', stockKey)
		return 1
	end

	return 0
`)

func (r *redisStockRepository) InitStock(ctx context.Context, couponID string, quantity int64) error {
	if err := r.cli.Set(ctx, r.stockKey(couponID), quantity, 0).Err(); err != nil {
		r.l.Errorf(ctx, "repository.redis.stock_repository.InitStock: %v", err)
		return err
	}

	return nil
}

func (r *redisStockRepository) GetStock(ctx context.Context, couponID string) (int64, error) {
	val, err := r.cli.Get(ctx, r.stockKey(couponID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, apperrors.ErrStockNotInitialized
		}

		r.l.Errorf(ctx, "repository.redis.stock_repository.GetStock: %v", err)
		return 0, err
	}

	stock, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		r.l.Errorf(ctx, "repository.redis.stock_repository.GetStock: unparsable stock %q: %v", val, err)
		return 0, apperrors.ErrInvalidStockValue
	}

	return stock, nil
}

func (r *redisStockRepository) AllocateAndIssue(ctx context.Context, userID, couponID string) (models.IssueResult, error) {
	res, err := issueScript.Run(ctx, r.cli,
		[]string{r.issuedKey(couponID), r.stockKey(couponID)},
		userID,
	).Int64()
	if err != nil {
		r.l.Errorf(ctx, "repository.redis.stock_repository.AllocateAndIssue: %v", err)
		return "", err
	}

	switch res {
	case 1:
		return models.IssueResultSuccess, nil
	case 0:
		return models.IssueResultOutOfStock, nil
	case -1:
		return models.IssueResultAlreadyIssued, nil
	case -2:
		return models.IssueResultNotFound, nil
	default:
		return "", fmt.Errorf("unexpected issue script result: %d", res)
	}
}

func (r *redisStockRepository) Compensate(ctx context.Context, userID, couponID string) error {
	restored, err := compensateScript.Run(ctx, r.cli,
		[]string{r.issuedKey(couponID), r.stockKey(couponID)},
		userID,
	).Int64()
	if err != nil {
		r.l.Errorf(ctx, "repository.redis.stock_repository.Compensate: %v", err)
		return err
	}

	if restored == 1 {
		r.l.Infof(ctx, "Compensated allocation: userID=%s couponID=%s", userID, couponID)
	}

	return nil
}

func (r *redisStockRepository) stockKey(couponID string) string {
	return fmt.Sprintf("coupon:stock:%s", couponID)
}

func (r *redisStockRepository) issuedKey(couponID string) string {
	return fmt.Sprintf("coupon:issued:%s", couponID)
}
