package models

import "time"

// event types published after a state transition commits
const (
	EventOrderCompleted   = "order_completed"
	EventPaymentCompleted = "payment_completed"
	EventPaymentRefunded  = "payment_refunded"
	EventPayoutCompleted  = "payout_completed"
)

// Event is a post-commit domain event. Publishing failures are logged and
// never propagated into the transition that produced the event.
type Event struct {
	Type              string    `json:"event_type"`
	OrderNumber       string    `json:"order_number,omitempty"`
	TransactionNumber string    `json:"transaction_number,omitempty"`
	PayoutNumber      string    `json:"payout_number,omitempty"`
	UserID            int64     `json:"user_id,omitempty"`
	VendorID          int64     `json:"vendor_id,omitempty"`
	Amount            float64   `json:"amount,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}
