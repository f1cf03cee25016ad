package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func activeCoupon() Coupon {
	return Coupon{
		Code:      "SPRING20",
		Type:      CouponTypePercentage,
		Value:     20,
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
		Scope:     CouponScopeAll,
		Status:    CouponStatusActive,
	}
}

func TestCouponValidate(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		modify     func(c *Coupon)
		userID     int64
		userUses   int
		userOrders int
		wantErr    error
	}{
		{
			name:   "valid",
			modify: func(c *Coupon) {},
		},
		{
			name:    "inactive",
			modify:  func(c *Coupon) { c.Status = CouponStatusInactive },
			wantErr: ErrCouponInactive,
		},
		{
			name:    "not_started",
			modify:  func(c *Coupon) { c.StartDate = now.Add(24 * time.Hour) },
			wantErr: ErrCouponNotStarted,
		},
		{
			name:    "expired",
			modify:  func(c *Coupon) { c.EndDate = now.Add(-24 * time.Hour) },
			wantErr: ErrCouponExpired,
		},
		{
			name: "usage_limit_reached",
			modify: func(c *Coupon) {
				c.UsageLimit = 100
				c.UsageCount = 100
			},
			wantErr: ErrCouponUsageLimit,
		},
		{
			name: "zero_usage_limit_is_unlimited",
			modify: func(c *Coupon) {
				c.UsageLimit = 0
				c.UsageCount = 100000
			},
		},
		{
			name: "user_not_in_scope",
			modify: func(c *Coupon) {
				c.Scope = CouponScopeSpecificUsers
				c.AllowedUserIDs = []int64{7, 8}
			},
			userID:  9,
			wantErr: ErrCouponNotEligible,
		},
		{
			name: "user_in_scope",
			modify: func(c *Coupon) {
				c.Scope = CouponScopeSpecificUsers
				c.AllowedUserIDs = []int64{7, 8}
			},
			userID: 8,
		},
		{
			name:     "per_user_limit_reached",
			modify:   func(c *Coupon) { c.UserUsageLimit = 2 },
			userUses: 2,
			wantErr:  ErrCouponUserLimit,
		},
		{
			name:       "first_order_only_rejects_repeat_customer",
			modify:     func(c *Coupon) { c.IsFirstOrderOnly = true },
			userOrders: 3,
			wantErr:    ErrCouponFirstOrderOnly,
		},
		{
			name:   "first_order_only_allows_new_customer",
			modify: func(c *Coupon) { c.IsFirstOrderOnly = true },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeCoupon()
			tt.modify(&c)

			err := c.Validate(now, tt.userID, tt.userUses, tt.userOrders)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCouponCalculateDiscount(t *testing.T) {
	maxDiscount := 80.0

	tests := []struct {
		name        string
		coupon      Coupon
		orderAmount float64
		want        float64
	}{
		{
			name: "percentage_clamped_to_max",
			coupon: Coupon{
				Type:              CouponTypePercentage,
				Value:             10,
				MaxDiscountAmount: &maxDiscount,
			},
			orderAmount: 1000,
			want:        80,
		},
		{
			name: "percentage_under_max",
			coupon: Coupon{
				Type:              CouponTypePercentage,
				Value:             10,
				MaxDiscountAmount: &maxDiscount,
			},
			orderAmount: 500,
			want:        50,
		},
		{
			name: "percentage_no_max",
			coupon: Coupon{
				Type:  CouponTypePercentage,
				Value: 15,
			},
			orderAmount: 200,
			want:        30,
		},
		{
			name: "fixed",
			coupon: Coupon{
				Type:  CouponTypeFixed,
				Value: 25,
			},
			orderAmount: 100,
			want:        25,
		},
		{
			name: "fixed_never_exceeds_order_amount",
			coupon: Coupon{
				Type:  CouponTypeFixed,
				Value: 150,
			},
			orderAmount: 100,
			want:        100,
		},
		{
			name: "below_min_order_amount",
			coupon: Coupon{
				Type:           CouponTypePercentage,
				Value:          10,
				MinOrderAmount: 500,
			},
			orderAmount: 499.99,
			want:        0,
		},
		{
			name: "free_delivery_does_not_change_amount",
			coupon: Coupon{
				Type:  CouponTypeFreeDelivery,
				Value: 10,
			},
			orderAmount: 100,
			want:        0,
		},
		{
			name: "rounded_to_cents",
			coupon: Coupon{
				Type:  CouponTypePercentage,
				Value: 10,
			},
			orderAmount: 33.33,
			want:        3.33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.CalculateDiscount(tt.orderAmount))
		})
	}
}

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "SPRING20", NormalizeCouponCode("  spring20 "))
}
