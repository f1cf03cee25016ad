package models

import (
	"fmt"
	"time"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

// Payout is a batched disbursement to one vendor for a set of transactions.
//
// Invariant: Amount equals the sum of the included transactions' VendorAmount
// at batching time (snapshotted, not recomputed live). A transaction belongs
// to at most one non-cancelled payout.
type Payout struct {
	ID             int64
	Number         string
	VendorID       int64
	Amount         float64
	Method         string
	Status         PayoutStatus
	PeriodStart    time.Time
	PeriodEnd      time.Time
	TransactionIDs []int64
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CanBeProcessed reports whether disbursement may start.
func (s PayoutStatus) CanBeProcessed() bool { return s == PayoutStatusPending }

// CanBeSettled reports whether the payout may be completed or failed.
func (s PayoutStatus) CanBeSettled() bool { return s == PayoutStatusProcessing }

// CanBeCancelled reports whether the payout may be cancelled.
func (s PayoutStatus) CanBeCancelled() bool { return s == PayoutStatusPending }

// NewPayoutNumber generates a payout number of the form PO-<unix-millis>-<sequence>.
func NewPayoutNumber(now time.Time, seq int64) string {
	return fmt.Sprintf("PO-%d-%d", now.UnixMilli(), seq)
}
