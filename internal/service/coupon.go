package service

import (
	"context"
	"sync"
	"time"

	"github.com/vendora/marketplace/internal/models"
)

// how long a coupon read stays cached; the atomic increment at consumption
// time is the real usage-limit enforcement, so short staleness is acceptable
const couponCacheTTL = 30 * time.Second

// CouponRepository is interface for interacting with coupon-related data
type CouponRepository interface {
	// CreateCoupon inserts new coupon to database
	CreateCoupon(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	// GetCouponByCode returns coupon by normalized code
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	// GetCoupons returns all coupons
	GetCoupons(ctx context.Context) ([]models.Coupon, error)
	// IncrementUsage atomically increments usage while below the limit
	IncrementUsage(ctx context.Context, couponID int64) error
}

// UserOrderCounter supplies the user history needed for coupon eligibility
type UserOrderCounter interface {
	// CountUserOrders returns the user's total order count
	CountUserOrders(ctx context.Context, userID int64) (int, error)
	// CountUserCouponOrders returns the user's paid order count referencing the coupon code
	CountUserCouponOrders(ctx context.Context, userID int64, code string) (int, error)
}

type cacheEntry struct {
	coupon  models.Coupon
	expires time.Time
}

// CouponService implements the discount eligibility and pricing engine
type CouponService struct {
	repo   CouponRepository
	orders UserOrderCounter

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewCouponService creates new CouponService instance
func NewCouponService(repo CouponRepository, orders UserOrderCounter) *CouponService {
	return &CouponService{
		repo:   repo,
		orders: orders,
		cache:  make(map[string]cacheEntry),
	}
}

// Create validates and stores a new coupon. The code is normalized before
// storage.
func (cs *CouponService) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	coupon.Code = models.NormalizeCouponCode(coupon.Code)

	if err := validateCouponDefinition(coupon); err != nil {
		return nil, err
	}

	created, err := cs.repo.CreateCoupon(ctx, coupon)
	if err != nil {
		return nil, err
	}

	cs.invalidate(created.Code)

	return created, nil
}

// List returns all coupons
func (cs *CouponService) List(ctx context.Context) ([]models.Coupon, error) {
	return cs.repo.GetCoupons(ctx)
}

// Apply validates the coupon for the user and prices the discount for
// orderAmount. It does not consume a use.
func (cs *CouponService) Apply(ctx context.Context, code string, orderAmount float64, userID int64) (*models.Coupon, float64, error) {
	code = models.NormalizeCouponCode(code)

	coupon, err := cs.lookup(ctx, code)
	if err != nil {
		return nil, 0, err
	}

	userUses, err := cs.orders.CountUserCouponOrders(ctx, userID, code)
	if err != nil {
		return nil, 0, err
	}

	userOrders, err := cs.orders.CountUserOrders(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	if err := coupon.Validate(time.Now(), userID, userUses, userOrders); err != nil {
		return nil, 0, err
	}

	if orderAmount < coupon.MinOrderAmount {
		return nil, 0, models.ErrCouponMinOrder
	}

	return coupon, coupon.CalculateDiscount(orderAmount), nil
}

// ConsumeUsage records exactly one use of the coupon. Hitting the usage
// limit surfaces ErrCouponUsageLimit; callers treat that as advisory, not as
// a failure of the surrounding completion.
func (cs *CouponService) ConsumeUsage(ctx context.Context, couponID int64) error {
	return cs.repo.IncrementUsage(ctx, couponID)
}

func (cs *CouponService) lookup(ctx context.Context, code string) (*models.Coupon, error) {
	cs.mu.RLock()
	entry, ok := cs.cache[code]
	cs.mu.RUnlock()

	if ok && time.Now().Before(entry.expires) {
		coupon := entry.coupon
		return &coupon, nil
	}

	coupon, err := cs.repo.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	cs.cache[code] = cacheEntry{coupon: *coupon, expires: time.Now().Add(couponCacheTTL)}
	cs.mu.Unlock()

	return coupon, nil
}

func (cs *CouponService) invalidate(code string) {
	cs.mu.Lock()
	delete(cs.cache, code)
	cs.mu.Unlock()
}

func validateCouponDefinition(coupon *models.Coupon) error {
	if coupon.Code == "" {
		return models.ErrInvalidCoupon
	}

	switch coupon.Type {
	case models.CouponTypePercentage:
		if coupon.Value <= 0 || coupon.Value > 100 {
			return models.ErrInvalidCoupon
		}
	case models.CouponTypeFixed:
		if coupon.Value <= 0 {
			return models.ErrInvalidCoupon
		}
	case models.CouponTypeFreeDelivery:
	default:
		return models.ErrInvalidCoupon
	}

	switch coupon.Scope {
	case models.CouponScopeAll, models.CouponScopeSpecificUsers,
		models.CouponScopeSpecificCategories, models.CouponScopeSpecificServices:
	case "":
		coupon.Scope = models.CouponScopeAll
	default:
		return models.ErrInvalidCoupon
	}

	if coupon.EndDate.Before(coupon.StartDate) {
		return models.ErrInvalidCoupon
	}
	if coupon.UsageLimit < 0 || coupon.UserUsageLimit < 0 || coupon.MinOrderAmount < 0 {
		return models.ErrInvalidCoupon
	}

	if coupon.Status == "" {
		coupon.Status = models.CouponStatusActive
	}

	return nil
}
