package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/vendora/marketplace/internal/models"
	"github.com/vendora/marketplace/internal/repository/postgres"
)

const (
	couponColumns = `id, code, type, value, min_order_amount, max_discount_amount, start_date,
						end_date, usage_limit, usage_count, user_usage_limit, scope, allowed_user_ids,
						category_ids, service_ids, is_first_order_only, status, created_at, updated_at`

	insertCouponQuery = `
						INSERT INTO coupons (code, type, value, min_order_amount, max_discount_amount,
							start_date, end_date, usage_limit, user_usage_limit, scope, allowed_user_ids,
							category_ids, service_ids, is_first_order_only, status)
						VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
						RETURNING id, usage_count, created_at, updated_at
`
	selectCouponByCodeQuery = `
						SELECT ` + couponColumns + ` FROM coupons
						WHERE code = $1
`
	selectCouponsQuery = `
						SELECT ` + couponColumns + ` FROM coupons
						ORDER BY created_at DESC
`
	// increment only while below the limit; losing the race is not an error
	// for the surrounding completion, only for the increment itself
	incrementUsageQuery = `
						UPDATE coupons
						SET usage_count = usage_count + 1, updated_at = now()
						WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)
`
)

// CouponRepository provides access to coupon-related data
type CouponRepository struct {
	db *postgres.DB
}

// NewCouponRepository creates new CouponRepository instance
func NewCouponRepository(db *postgres.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	coupon := models.Coupon{}
	err := row.Scan(&coupon.ID, &coupon.Code, &coupon.Type, &coupon.Value, &coupon.MinOrderAmount,
		&coupon.MaxDiscountAmount, &coupon.StartDate, &coupon.EndDate, &coupon.UsageLimit,
		&coupon.UsageCount, &coupon.UserUsageLimit, &coupon.Scope, &coupon.AllowedUserIDs,
		&coupon.CategoryIDs, &coupon.ServiceIDs, &coupon.IsFirstOrderOnly, &coupon.Status,
		&coupon.CreatedAt, &coupon.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// CreateCoupon inserts new coupon to database
func (cr *CouponRepository) CreateCoupon(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	err := cr.db.QueryRow(ctx, insertCouponQuery,
		coupon.Code, coupon.Type, coupon.Value, coupon.MinOrderAmount, coupon.MaxDiscountAmount,
		coupon.StartDate, coupon.EndDate, coupon.UsageLimit, coupon.UserUsageLimit, coupon.Scope,
		coupon.AllowedUserIDs, coupon.CategoryIDs, coupon.ServiceIDs, coupon.IsFirstOrderOnly,
		coupon.Status,
	).Scan(&coupon.ID, &coupon.UsageCount, &coupon.CreatedAt, &coupon.UpdatedAt)
	if err != nil {
		if errCode := cr.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return coupon, nil
}

// GetCouponByCode returns coupon by normalized code
func (cr *CouponRepository) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := scanCoupon(cr.db.QueryRow(ctx, selectCouponByCodeQuery, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return coupon, nil
}

// GetCoupons returns all coupons
func (cr *CouponRepository) GetCoupons(ctx context.Context) ([]models.Coupon, error) {
	rows, err := cr.db.Query(ctx, selectCouponsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coupons := []models.Coupon{}

	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, *coupon)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return coupons, nil
}

// IncrementUsage atomically increments the coupon's usage count while it is
// below the limit. Returns ErrCouponUsageLimit when the limit is already
// consumed.
func (cr *CouponRepository) IncrementUsage(ctx context.Context, couponID int64) error {
	cmd, err := cr.db.Exec(ctx, incrementUsageQuery, couponID)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrCouponUsageLimit
	}

	return nil
}
