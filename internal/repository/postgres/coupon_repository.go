package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "github.com/vogiaan1904/rediclaim/internal/errors"
	"github.com/vogiaan1904/rediclaim/internal/models"
)

type CouponRepository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	GetByID(ctx context.Context, id string) (*models.Coupon, error)
	ListValid(ctx context.Context) ([]models.Coupon, error)
	ListAll(ctx context.Context) ([]models.Coupon, error)
	UpdateRemainingCount(ctx context.Context, id string, count int64) error
}

type postgresCouponRepository struct {
	db *pgxpool.Pool
}

func NewPostgresCouponRepository(db *pgxpool.Pool) CouponRepository {
	return &postgresCouponRepository{db: db}
}

func (r *postgresCouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	query := `
		INSERT INTO coupons (id, name, remaining_count, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now()
	coupon.CreatedAt = now
	coupon.UpdatedAt = now

	_, err := r.db.Exec(ctx, query,
		coupon.ID,
		coupon.Name,
		coupon.RemainingCount,
		coupon.CreatorID,
		coupon.CreatedAt,
		coupon.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	return nil
}

func (r *postgresCouponRepository) GetByID(ctx context.Context, id string) (*models.Coupon, error) {
	query := `
		SELECT id, name, remaining_count, creator_id, created_at, updated_at
		FROM coupons
		WHERE id = $1
	`

	coupon := &models.Coupon{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&coupon.ID,
		&coupon.Name,
		&coupon.RemainingCount,
		&coupon.CreatorID,
		&coupon.CreatedAt,
		&coupon.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	return coupon, nil
}

func (r *postgresCouponRepository) ListValid(ctx context.Context) ([]models.Coupon, error) {
	query := `
		SELECT id, name, remaining_count, creator_id, created_at, updated_at
		FROM coupons
		WHERE remaining_count > 0
		ORDER BY created_at
	`

	return r.list(ctx, query)
}

func (r *postgresCouponRepository) ListAll(ctx context.Context) ([]models.Coupon, error) {
	query := `
		SELECT id, name, remaining_count, creator_id, created_at, updated_at
		FROM coupons
		ORDER BY created_at
	`

	return r.list(ctx, query)
}

func (r *postgresCouponRepository) list(ctx context.Context, query string) ([]models.Coupon, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []models.Coupon
	for rows.Next() {
		var c models.Coupon
		if err := rows.Scan(&c.ID, &c.Name, &c.RemainingCount, &c.CreatorID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupons: %w", err)
	}

	return coupons, nil
}

func (r *postgresCouponRepository) UpdateRemainingCount(ctx context.Context, id string, count int64) error {
	query := `
		UPDATE coupons
		SET remaining_count = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, count, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update remaining count: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrCouponNotFound
	}

	return nil
}
