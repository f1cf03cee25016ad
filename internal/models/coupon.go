package models

import (
	"strings"
	"time"
)

type CouponType string

const (
	CouponTypePercentage   CouponType = "percentage"
	CouponTypeFixed        CouponType = "fixed"
	CouponTypeFreeDelivery CouponType = "free_delivery"
)

type CouponScope string

const (
	CouponScopeAll                CouponScope = "all"
	CouponScopeSpecificUsers      CouponScope = "specific_users"
	CouponScopeSpecificCategories CouponScope = "specific_categories"
	CouponScopeSpecificServices   CouponScope = "specific_services"
)

type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusInactive CouponStatus = "inactive"
)

// Coupon is a named, time-boxed, usage-limited discount rule.
//
// Invariant: UsageCount <= UsageLimit when UsageLimit > 0. UsageCount is
// incremented exactly once per confirmed payment referencing the coupon and
// never decremented.
type Coupon struct {
	ID                int64
	Code              string
	Type              CouponType
	Value             float64
	MinOrderAmount    float64
	MaxDiscountAmount *float64
	StartDate         time.Time
	EndDate           time.Time
	UsageLimit        int // 0 = unlimited
	UsageCount        int
	UserUsageLimit    int
	Scope             CouponScope
	AllowedUserIDs    []int64
	CategoryIDs       []int64
	ServiceIDs        []int64
	IsFirstOrderOnly  bool
	Status            CouponStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NormalizeCouponCode upper-cases and trims a coupon code for storage and
// lookup.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks coupon eligibility against an explicit point in time and
// the requesting user's history. userUses is the user's prior completed-order
// count referencing this coupon; userOrders is the user's total prior order
// count.
func (c Coupon) Validate(now time.Time, userID int64, userUses, userOrders int) error {
	if c.Status != CouponStatusActive {
		return ErrCouponInactive
	}
	if now.Before(c.StartDate) {
		return ErrCouponNotStarted
	}
	if now.After(c.EndDate) {
		return ErrCouponExpired
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return ErrCouponUsageLimit
	}
	if c.Scope == CouponScopeSpecificUsers && !containsID(c.AllowedUserIDs, userID) {
		return ErrCouponNotEligible
	}
	if c.UserUsageLimit > 0 && userUses >= c.UserUsageLimit {
		return ErrCouponUserLimit
	}
	if c.IsFirstOrderOnly && userOrders > 0 {
		return ErrCouponFirstOrderOnly
	}
	return nil
}

// CalculateDiscount returns the discount for orderAmount, clamped to
// MaxDiscountAmount when set and never exceeding the order amount. Amounts
// below MinOrderAmount yield no discount. free_delivery coupons do not
// change the priced amount.
func (c Coupon) CalculateDiscount(orderAmount float64) float64 {
	if orderAmount < c.MinOrderAmount {
		return 0
	}

	var discount float64
	switch c.Type {
	case CouponTypePercentage:
		discount = orderAmount * c.Value / 100
	case CouponTypeFixed:
		discount = c.Value
	case CouponTypeFreeDelivery:
		return 0
	default:
		return 0
	}

	if c.MaxDiscountAmount != nil && discount > *c.MaxDiscountAmount {
		discount = *c.MaxDiscountAmount
	}
	if discount > orderAmount {
		discount = orderAmount
	}

	return Round2(discount)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
