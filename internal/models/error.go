package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConflictData  = errors.New("data conflicts with existing data")
	ErrDataNotFound  = errors.New("data not found")
	ErrInternalError = errors.New("internal error")

	// order
	ErrOrderStateConflict   = errors.New("order state does not permit this transition")
	ErrOrderNotPayable      = errors.New("order is not awaiting payment")
	ErrInvalidOrderAmount   = errors.New("invalid order amount")
	ErrInvalidBookingSlot   = errors.New("invalid booking date or time")

	// coupon
	ErrCouponInactive       = errors.New("coupon is not active")
	ErrCouponNotStarted     = errors.New("coupon is not yet valid")
	ErrCouponExpired        = errors.New("coupon has expired")
	ErrCouponUsageLimit     = errors.New("coupon usage limit reached")
	ErrCouponUserLimit      = errors.New("coupon user usage limit reached")
	ErrCouponNotEligible    = errors.New("coupon is not applicable to this user")
	ErrCouponFirstOrderOnly = errors.New("coupon is valid for first orders only")
	ErrCouponMinOrder       = errors.New("order amount is below coupon minimum")

	ErrInvalidCoupon = errors.New("invalid coupon definition")

	// transaction
	ErrGatewayVerification = errors.New("gateway result verification failed")
	ErrRefundNotAllowed    = errors.New("transaction is not refundable")
	ErrRefundExceedsAmount = errors.New("refund exceeds refundable amount")
	ErrInvalidRefundAmount = errors.New("refund amount must be positive")

	// payout
	ErrPayoutStateConflict      = errors.New("payout state does not permit this transition")
	ErrNoEligibleTransactions   = errors.New("no eligible transactions for payout")
)

// GatewayError is a transient payment gateway failure. The caller may retry
// after RetryAfter when it is set.
type GatewayError struct {
	Message    string
	RetryAfter time.Duration
}

func NewGatewayError(message string, retryAfter time.Duration) GatewayError {
	return GatewayError{Message: message, RetryAfter: retryAfter}
}

func (e GatewayError) Error() string {
	return fmt.Sprintf("gateway error: %s", e.Message)
}

// ReconciliationError marks a confirmed transaction whose linked order could
// not be updated. It is logged for out-of-band repair, never silently dropped.
type ReconciliationError struct {
	TransactionNumber string
	OrderNumber       string
	Err               error
}

func (e ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation required for transaction %s (order %s): %v",
		e.TransactionNumber, e.OrderNumber, e.Err)
}

func (e ReconciliationError) Unwrap() error { return e.Err }
