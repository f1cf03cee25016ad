package models

import (
	"fmt"
	"math/rand/v2"
	"time"
)

type TransactionType string

const (
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypePayout     TransactionType = "payout"
	TransactionTypeCommission TransactionType = "commission"
)

type TransactionStatus string

const (
	TransactionStatusPending           TransactionStatus = "pending"
	TransactionStatusProcessing        TransactionStatus = "processing"
	TransactionStatusCompleted         TransactionStatus = "completed"
	TransactionStatusFailed            TransactionStatus = "failed"
	TransactionStatusRefunded          TransactionStatus = "refunded"
	TransactionStatusPartiallyRefunded TransactionStatus = "partially_refunded"
	TransactionStatusCancelled         TransactionStatus = "cancelled"
)

// Transaction is one monetary event tied to an order.
//
// Invariant: CommissionAmount + VendorAmount == Amount within rounding
// tolerance. The triple is recomputed via Split before persistence and
// written atomically as one record.
type Transaction struct {
	ID               int64
	Number           string
	OrderID          int64
	OrderNumber      string
	UserID           int64
	VendorID         int64
	Type             TransactionType
	Amount           float64
	CommissionRate   float64
	CommissionAmount float64
	VendorAmount     float64
	PaymentMethod    string
	Status           TransactionStatus
	GatewayRef       string
	RefundID         *string
	RefundAmount     float64
	RefundReason     string
	RefundedAt       *time.Time
	PayoutID         *int64
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Split divides amount into platform commission and vendor-payable remainder
// for the given commission rate (percent). The two parts always sum back to
// the rounded amount.
func Split(amount, rate float64) (commission, vendor float64) {
	amount = Round2(amount)
	commission = Round2(amount * rate / 100)
	vendor = Round2(amount - commission)
	return commission, vendor
}

// Refundable reports whether a refund may be applied to the transaction at all.
func (t Transaction) Refundable() bool {
	if t.Type != TransactionTypePayment {
		return false
	}
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusPartiallyRefunded
}

// RemainingRefundable is the amount still available for refund.
func (t Transaction) RemainingRefundable() float64 {
	return Round2(t.Amount - t.RefundAmount)
}

// NewTransactionNumber generates a transaction number of the form
// TXN-YYYYMMDD-NNNNNN. Callers must retry on a uniqueness violation.
func NewTransactionNumber(now time.Time) string {
	return fmt.Sprintf("TXN-%s-%06d", now.Format("20060102"), rand.IntN(1000000))
}
