package models

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// OrderStatus is the booking life-cycle state. Transitions are driven by
// vendor action or by cancellation; rejected, completed and cancelled are
// terminal.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusRejected   OrderStatus = "rejected"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks payment independently of the booking state.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// CanBeProcessed reports whether the order may be accepted or rejected.
func (s OrderStatus) CanBeProcessed() bool { return s == OrderStatusPending }

// CanBeStarted reports whether work on the order may begin.
func (s OrderStatus) CanBeStarted() bool { return s == OrderStatusAccepted }

// CanBeCompleted reports whether the order may be completed.
func (s OrderStatus) CanBeCompleted() bool { return s == OrderStatusInProgress }

// CanBeCancelled reports whether the order may still be cancelled. There is
// no cancellation once work has started.
func (s OrderStatus) CanBeCancelled() bool {
	return s == OrderStatusPending || s == OrderStatusAccepted
}

// CanBeRescheduled reports whether the booking slot may still be changed.
func (s OrderStatus) CanBeRescheduled() bool {
	return s == OrderStatusPending || s == OrderStatusAccepted
}

// CouponApplication records a coupon applied to an order. It is immutable
// once set.
type CouponApplication struct {
	CouponID       int64
	Code           string
	DiscountAmount float64
}

// Order is one booking of one vendor service by one user.
//
// Money invariant: TotalAmount == Subtotal + Tax + PlatformFee and
// Subtotal == ServicePrice - DiscountAmount, both within rounding tolerance.
type Order struct {
	ID            int64
	Number        string
	UserID        int64
	VendorID      int64
	ServiceID     int64
	ServicePrice  float64
	DiscountAmount float64
	Subtotal      float64
	Tax           float64
	PlatformFee   float64
	TotalAmount   float64
	Status        OrderStatus
	PaymentStatus PaymentStatus
	BookingDate   time.Time
	BookingTime   string
	Notes         string
	Coupon        *CouponApplication
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Reschedule is an audit record of a prior booking slot, written before the
// slot is overwritten.
type Reschedule struct {
	ID           int64
	OrderID      int64
	PreviousDate time.Time
	PreviousTime string
	ChangedAt    time.Time
}

// NewOrderNumber generates an order number of the form ORD-YYYYMMDD-NNNNNN.
// The suffix is random; callers must retry on a uniqueness violation.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%06d", now.Format("20060102"), rand.IntN(1000000))
}
