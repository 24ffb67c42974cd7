package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vogiaan1904/rediclaim/internal/models"
)

// uniqueViolationCode is the Postgres error code raised when the
// (user_id, coupon_id) uniqueness constraint rejects a duplicate insert.
const uniqueViolationCode = "23505"

type IssuedCouponRepository interface {
	Insert(ctx context.Context, userID, couponID string, issuedAt time.Time) error
	ListByUser(ctx context.Context, userID string) ([]models.IssuedCoupon, error)
}

// IsDuplicateRecord reports whether an Insert failed because the issuance
// record already exists. Redelivered pipeline events hit this path and must be
// treated as a no-op, not a failure.
func IsDuplicateRecord(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

type postgresIssuedCouponRepository struct {
	db *pgxpool.Pool
}

func NewPostgresIssuedCouponRepository(db *pgxpool.Pool) IssuedCouponRepository {
	return &postgresIssuedCouponRepository{db: db}
}

func (r *postgresIssuedCouponRepository) Insert(ctx context.Context, userID, couponID string, issuedAt time.Time) error {
	query := `
		INSERT INTO issued_coupons (user_id, coupon_id, issued_at)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.Exec(ctx, query, userID, couponID, issuedAt); err != nil {
		return fmt.Errorf("failed to insert issued coupon: %w", err)
	}

	return nil
}

func (r *postgresIssuedCouponRepository) ListByUser(ctx context.Context, userID string) ([]models.IssuedCoupon, error) {
	query := `
		SELECT user_id, coupon_id, issued_at
		FROM issued_coupons
		WHERE user_id = $1
		ORDER BY issued_at
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issued coupons: %w", err)
	}
	defer rows.Close()

	var issued []models.IssuedCoupon
	for rows.Next() {
		var ic models.IssuedCoupon
		if err := rows.Scan(&ic.UserID, &ic.CouponID, &ic.IssuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan issued coupon: %w", err)
		}
		issued = append(issued, ic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issued coupons: %w", err)
	}

	return issued, nil
}
